package quorum

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/omahs/relayer/internal/chaintypes"
	"github.com/omahs/relayer/internal/retrycaller"
)

// Endpoint is what Router needs from a member of its ordered list: the retrycaller.Sender
// contract plus a label safe to put in logs and errors.
type Endpoint interface {
	retrycaller.Sender
	Host() string
}

// NotEnoughProvidersError is raised when a required slot could not be filled — the slot
// failed and its fallback deque ran dry.
type NotEnoughProvidersError struct {
	Failed    map[string]string // host -> error text
	Succeeded []string          // hosts
}

func (e *NotEnoughProvidersError) Error() string {
	var failed []string
	for host, text := range e.Failed {
		failed = append(failed, fmt.Sprintf("%s: %s", host, text))
	}
	return fmt.Sprintf("not enough providers succeeded: failed=[%s] succeeded=%v",
		strings.Join(failed, "; "), e.Succeeded)
}

// QuorumNotMetError is raised when enough required slots succeeded but too few of the
// collected results agree.
type QuorumNotMetError struct {
	Required  int
	TopCount  int
	Disagreed map[string]string // host -> value or error text
}

func (e *QuorumNotMetError) Error() string {
	var parts []string
	for host, v := range e.Disagreed {
		parts = append(parts, fmt.Sprintf("%s=%s", host, v))
	}
	return fmt.Sprintf("quorum not met: required %d, best agreement %d, disagreeing providers=[%s]",
		e.Required, e.TopCount, strings.Join(parts, "; "))
}

// DisagreementObserver is notified whenever a dispatch resolves with a quorum-forming value
// that at least one provider disagreed with. It lets a consumer (the drift exporter, in
// particular) learn about disagreement without quorum depending on that package.
type DisagreementObserver func(method string, agreedValue json.RawMessage, agreedProviders []string, disagreed map[string]string)

// Router dispatches one logical call across its ordered endpoint list per §4.4: the
// required-then-fallback, tally-then-tie-break algorithm.
type Router struct {
	chainID             chaintypes.ChainID
	endpoints           []Endpoint
	nodeQuorumThreshold int
	retries             int
	retryDelay          time.Duration
	log                 *logrus.Entry
	onDisagreement      DisagreementObserver
}

// New constructs a Router over an already-ordered endpoint list. The order is the
// consumer's preference order and is also the tie-break for fallback selection.
func New(chainID chaintypes.ChainID, endpoints []Endpoint, nodeQuorumThreshold, retries int, retryDelay time.Duration, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{
		chainID:             chainID,
		endpoints:           endpoints,
		nodeQuorumThreshold: nodeQuorumThreshold,
		retries:             retries,
		retryDelay:          retryDelay,
		log:                 log.WithField("chain", string(chainID)),
	}
}

// OnDisagreement installs a callback invoked every time a dispatch resolves with at least
// one disagreeing provider. Must be called before concurrent use of Send begins.
func (r *Router) OnDisagreement(observer DisagreementObserver) {
	r.onDisagreement = observer
}

// fallbackQueue is a thread-safe FIFO of not-yet-used endpoints, consumed from the front so
// that every endpoint in it is claimed by at most one required slot.
type fallbackQueue struct {
	mu    sync.Mutex
	items []Endpoint
}

func (q *fallbackQueue) pop() (Endpoint, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *fallbackQueue) drain() []Endpoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.items
	q.items = nil
	return rest
}

type slotOutcome struct {
	endpoint Endpoint
	value    json.RawMessage
	err      error
}

// Send implements router.send(method, params) -> result, the fabric's single stable entry
// point to consumers.
func (r *Router) Send(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	q := RequiredQuorum(method, params, r.nodeQuorumThreshold)
	if q > len(r.endpoints) {
		q = len(r.endpoints)
	}

	state := newCallStateTracker()

	required := r.endpoints[:q]
	fallbacks := &fallbackQueue{items: append([]Endpoint{}, r.endpoints[q:]...)}

	outcomes := r.dispatchRequired(ctx, method, params, required, fallbacks)

	failed := map[string]string{}
	var succeededSlots []slotOutcome
	for _, o := range outcomes {
		if o.err != nil {
			failed[o.endpoint.Host()] = o.err.Error()
		} else {
			succeededSlots = append(succeededSlots, o)
		}
	}
	if len(failed) > 0 {
		state.transition(StateRejected)
		succeeded := make([]string, 0, len(succeededSlots))
		for _, o := range succeededSlots {
			succeeded = append(succeeded, o.endpoint.Host())
		}
		return nil, &NotEnoughProvidersError{Failed: failed, Succeeded: succeeded}
	}

	if r.allAgree(method, succeededSlots) {
		state.transition(StateResolved)
		return succeededSlots[0].value, nil
	}

	state.transition(StateResolvingTies)
	return r.resolveTies(ctx, method, params, succeededSlots, fallbacks, q, state)
}

// dispatchRequired runs one goroutine per required slot. Each slot starts on its assigned
// endpoint; on failure it pops one fallback from the shared queue and retries, repeating
// until success or the queue is empty.
func (r *Router) dispatchRequired(ctx context.Context, method string, params []any, required []Endpoint, fallbacks *fallbackQueue) []slotOutcome {
	outcomes := make([]slotOutcome, len(required))
	var wg sync.WaitGroup
	wg.Add(len(required))

	for i, ep := range required {
		go func(i int, ep Endpoint) {
			defer wg.Done()
			outcomes[i] = r.runSlot(ctx, method, params, ep, fallbacks)
		}(i, ep)
	}
	wg.Wait()
	return outcomes
}

func (r *Router) runSlot(ctx context.Context, method string, params []any, ep Endpoint, fallbacks *fallbackQueue) slotOutcome {
	current := ep
	for {
		caller := retrycaller.New(current, r.retries, r.retryDelay)
		value, err := caller.Call(ctx, method, params)
		if err == nil {
			return slotOutcome{endpoint: current, value: value}
		}

		next, ok := fallbacks.pop()
		if !ok {
			return slotOutcome{endpoint: current, err: err}
		}
		current = next
	}
}

func (r *Router) allAgree(method string, slots []slotOutcome) bool {
	if len(slots) == 0 {
		return false
	}
	first, err := Parse(slots[0].value)
	if err != nil {
		return false
	}
	for _, s := range slots[1:] {
		v, err := Parse(s.value)
		if err != nil || !Equal(method, first, v) {
			return false
		}
	}
	return true
}

// equivalenceClass tracks one group of agreeing results.
type equivalenceClass struct {
	value   json.RawMessage
	members []slotOutcome
}

// resolveTies implements step 5 of §4.4: dispatch remaining fallbacks in parallel, tally all
// results into equivalence classes under the result-equality relation, and accept the top
// class iff it meets the required quorum.
func (r *Router) resolveTies(ctx context.Context, method string, params []any, required []slotOutcome, fallbacks *fallbackQueue, q int, state *callStateTracker) (json.RawMessage, error) {
	remaining := fallbacks.drain()
	var wg sync.WaitGroup
	fallbackOutcomes := make([]slotOutcome, len(remaining))
	wg.Add(len(remaining))
	for i, ep := range remaining {
		go func(i int, ep Endpoint) {
			defer wg.Done()
			caller := retrycaller.New(ep, r.retries, r.retryDelay)
			value, err := caller.Call(ctx, method, params)
			fallbackOutcomes[i] = slotOutcome{endpoint: ep, value: value, err: err}
		}(i, ep)
	}
	wg.Wait()

	all := append(append([]slotOutcome{}, required...), fallbackOutcomes...)

	classes := r.classify(method, all)
	sortClassesDescending(classes)

	top := classes[0]
	disagreed := map[string]string{}
	for _, c := range classes[1:] {
		for _, m := range c.members {
			disagreed[m.endpoint.Host()] = string(c.value)
		}
	}
	for _, o := range all {
		if o.err != nil {
			disagreed[o.endpoint.Host()] = o.err.Error()
		}
	}

	if len(top.members) >= q {
		state.transition(StateResolved)
		if len(disagreed) > 0 {
			r.log.WithFields(logrus.Fields{
				"method":    method,
				"agreed":    hostsOf(top.members),
				"disagreed": disagreed,
			}).Warn("quorum reached with disagreeing providers")
			if r.onDisagreement != nil {
				r.onDisagreement(method, top.value, hostsOf(top.members), disagreed)
			}
		}
		return top.value, nil
	}

	state.transition(StateRejected)
	return nil, &QuorumNotMetError{Required: q, TopCount: len(top.members), Disagreed: disagreed}
}

func (r *Router) classify(method string, outcomes []slotOutcome) []equivalenceClass {
	var classes []equivalenceClass
	for _, o := range outcomes {
		if o.err != nil {
			continue
		}
		v, err := Parse(o.value)
		if err != nil {
			continue
		}
		placed := false
		for i := range classes {
			existing, _ := Parse(classes[i].value)
			if Equal(method, existing, v) {
				classes[i].members = append(classes[i].members, o)
				placed = true
				break
			}
		}
		if !placed {
			classes = append(classes, equivalenceClass{value: o.value, members: []slotOutcome{o}})
		}
	}
	return classes
}

func sortClassesDescending(classes []equivalenceClass) {
	for i := 1; i < len(classes); i++ {
		for j := i; j > 0 && len(classes[j].members) > len(classes[j-1].members); j-- {
			classes[j], classes[j-1] = classes[j-1], classes[j]
		}
	}
}

func hostsOf(outcomes []slotOutcome) []string {
	hosts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		hosts = append(hosts, o.endpoint.Host())
	}
	return hosts
}
