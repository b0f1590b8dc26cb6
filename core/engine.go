package core

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// engineState bundles a ResolverState with the exposure accumulator
// tied to its lifetime, so an atomic pointer swap replaces both
// together.
type engineState struct {
	resolver    *ResolverState
	accumulator *ExposureAccumulator
}

// EngineConfig tunes the façade's operational knobs; see
// pkg/config.Config.Engine for the on-disk shape these are usually
// loaded from.
type EngineConfig struct {
	MissingCacheSize int
	FlushMaxBytes    int
}

// Engine is the C7 entry-point façade: the only type resolver clients
// talk to. It owns the current ResolverState (swappable via SetState),
// delegates evaluation to the C4/C5 state machines, and accumulates
// exposure via C6.
type Engine struct {
	current atomic.Pointer[engineState]

	clock   Clock
	log     *logrus.Entry
	metrics *EngineMetrics
	cfg     EngineConfig

	missingCache *lru.Cache[string, []MissingMaterializationItem]

	// newResolveID is overridable in tests so assertions can pin exact
	// resolve_id values; production wiring leaves it nil and NewEngine
	// defaults it to uuid.NewString.
	newResolveID func() string
}

// NewEngine constructs an Engine with no state installed; SetState must
// be called before ResolveWithSticky will find any flags.
func NewEngine(clock Clock, cfg EngineConfig, log *logrus.Entry) (*Engine, error) {
	if cfg.MissingCacheSize <= 0 {
		cfg.MissingCacheSize = 4096
	}
	if cfg.FlushMaxBytes <= 0 {
		cfg.FlushMaxBytes = 1 << 20
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	cache, err := lru.New[string, []MissingMaterializationItem](cfg.MissingCacheSize)
	if err != nil {
		return nil, fmt.Errorf("build missing-materialization cache: %w", err)
	}

	e := &Engine{
		clock:        clock,
		log:          log.WithField("component", "resolver_engine"),
		metrics:      NewEngineMetrics(),
		cfg:          cfg,
		missingCache: cache,
		newResolveID: uuid.NewString,
	}
	empty := &engineState{accumulator: NewExposureAccumulator(clock)}
	e.current.Store(empty)
	return e, nil
}

// SetState decodes snapshotBytes into a new ResolverState, flushes the
// outgoing accumulator's remaining tail into the incoming one, and
// atomically installs the new state. On failure the previous state is
// retained untouched.
func (e *Engine) SetState(snapshotBytes []byte, accountID string) error {
	resolver, err := buildResolverState(snapshotBytes, accountID)
	if err != nil {
		e.log.WithError(err).Warn("set_state rejected")
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	next := &engineState{
		resolver:    resolver,
		accumulator: NewExposureAccumulator(e.clock),
	}

	prev := e.current.Swap(next)
	if prev != nil && prev.accumulator != nil {
		next.accumulator.mergeFrom(prev.accumulator)
	}
	e.missingCache.Purge()
	e.metrics.stateSwapsTotal.Inc()
	e.log.WithField("account_id", accountID).Info("resolver state installed")
	return nil
}

// ResolveWithSticky is the C7 wrapper around the C5 orchestrator: it
// authenticates the client, runs the discovery/evaluation pipeline
// against the current state, records exposure on success when
// requested, and serves repeat MissingMaterializations requests from a
// bounded cache for idempotence under fail_fast_on_sticky. Only requests
// that carry no materializations use the cache, so a retry that supplies
// them is evaluated afresh.
func (e *Engine) ResolveWithSticky(req ResolveWithStickyRequest) (StickyResult, error) {
	snapshot := e.current.Load()
	if snapshot == nil || snapshot.resolver == nil {
		return StickyResult{}, &AuthenticationError{Err: fmt.Errorf("no resolver state installed")}
	}

	client, ok := snapshot.resolver.ClientBySecret(req.ClientSecret)
	if !ok {
		e.metrics.observeResolve("unauthenticated")
		return StickyResult{}, &AuthenticationError{Err: ErrUnauthenticated}
	}

	useMissingCache := req.FailFastOnSticky && len(req.MaterializationsPerUnit) == 0
	if useMissingCache {
		cacheKey := missingCacheKey(req)
		if cached, ok := e.missingCache.Get(cacheKey); ok {
			return StickyResult{Kind: StickyMissingMaterializations, MissingItems: cached}, nil
		}
	}

	result, records, staleFallthroughs := resolveWithSticky(snapshot.resolver, client, req)
	if staleFallthroughs > 0 {
		for i := 0; i < staleFallthroughs; i++ {
			e.metrics.staleMaterializationFallthrough.Inc()
		}
	}

	switch result.Kind {
	case StickyMissingMaterializations:
		e.metrics.missingMaterializationsTotal.Add(float64(len(result.MissingItems)))
		e.metrics.observeResolve("missing_materializations")
		if useMissingCache {
			e.missingCache.Add(missingCacheKey(req), result.MissingItems)
		}
		return result, nil
	case StickySuccess:
		resolveID := e.newResolveID()
		result.Response.ResolveID = resolveID
		e.metrics.observeResolve("success")
		if req.Apply {
			snapshot.accumulator.RecordResolve(resolveID, client, req.SDKID, req.SDKVersion, req.EvaluationContext.TargetingKey, records)
			e.metrics.pendingFlagAssignedGauge.Add(float64(len(records)))
		}
		return result, nil
	}
	return result, nil
}

// FlushLogs drains the current state's exposure accumulator, returning
// the serialized WriteFlagLogsRequest bytes (possibly empty).
func (e *Engine) FlushLogs(maxBytes int) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = e.cfg.FlushMaxBytes
	}
	snapshot := e.current.Load()
	if snapshot == nil || snapshot.accumulator == nil {
		return nil, nil
	}
	req, err := snapshot.accumulator.flush(maxBytes)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	out, err := marshalWriteFlagLogsRequest(req)
	if err != nil {
		return nil, fmt.Errorf("marshal flush_logs output: %w", err)
	}
	e.metrics.flushCallsTotal.Inc()
	e.metrics.flushBytesTotal.Add(float64(len(out)))
	e.metrics.pendingFlagAssignedGauge.Set(float64(snapshot.accumulator.pendingShardCount()))
	return out, nil
}

// MetricsHandler exposes the engine's Prometheus registry for mounting
// on an admin HTTP surface.
func (e *Engine) MetricsHandler() http.Handler {
	return e.metrics.Handler()
}

func missingCacheKey(req ResolveWithStickyRequest) string {
	var b strings.Builder
	b.WriteString(req.EvaluationContext.TargetingKey)
	b.WriteByte('|')
	b.WriteString(strings.Join(req.Flags, ","))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(req.FailFastOnSticky))
	return b.String()
}
