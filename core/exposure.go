package core

import (
	"sync"
	"sync/atomic"
)

// exposureShardCount is the number of independently-locked shards
// flag_assigned entries are spread across, so concurrent evaluations on
// different goroutines rarely contend on the same mutex.
const exposureShardCount = 16

// FlagAssignedEntry is one exposure record: a single apply=true
// assignment produced by resolve_with_sticky.
type FlagAssignedEntry struct {
	ResolveID         string
	TargetingKey      string
	Flag              string
	Variant           string
	Rule              string
	Reason            ResolveReason
	TimestampUnixNano int64
	ClientID          string
	SDKID             string
	SDKVersion        string
}

// ClientResolveInfoEntry summarizes one resolve_with_sticky call.
type ClientResolveInfoEntry struct {
	ResolveID         string
	ClientID          string
	SDKID             string
	SDKVersion        string
	TimestampUnixNano int64
	FlagCount         int
}

// flagResolveKey groups aggregated counters by flag/variant/reason.
type flagResolveKey struct {
	Flag    string
	Variant string
	Reason  ResolveReason
}

// FlagResolveInfoEntry is one aggregated (flag, variant, reason) counter
// accumulated for this state's lifetime.
type FlagResolveInfoEntry struct {
	Flag    string
	Variant string
	Reason  ResolveReason
	Count   uint64
}

// TelemetryData records the observed request rate since the last flush.
type TelemetryData struct {
	RequestsPerSecond float64
	WindowSeconds     float64
	SampledAtUnixNano int64
}

type exposureShard struct {
	mu      sync.Mutex
	entries []FlagAssignedEntry
}

// ExposureAccumulator is the C6 component: a multiple-writer,
// periodically-drained log of exposures tied to a single
// ResolverState's lifetime.
type ExposureAccumulator struct {
	shards [exposureShardCount]exposureShard

	clock Clock

	mu                sync.Mutex
	clientResolveInfo []ClientResolveInfoEntry
	flagResolveInfo   map[flagResolveKey]uint64
	lastFlushAt       int64 // unix nano; 0 means "never flushed"
	createdAt         int64

	requestsSinceFlush uint64 // atomic
}

// NewExposureAccumulator constructs an empty accumulator bound to clock.
func NewExposureAccumulator(clock Clock) *ExposureAccumulator {
	now := clock.Now().UnixNano()
	return &ExposureAccumulator{
		clock:           clock,
		flagResolveInfo: make(map[flagResolveKey]uint64),
		lastFlushAt:     now,
		createdAt:       now,
	}
}

func (e *ExposureAccumulator) shardFor(resolveID string) *exposureShard {
	var h uint32
	for i := 0; i < len(resolveID); i++ {
		h = h*31 + uint32(resolveID[i])
	}
	return &e.shards[h%exposureShardCount]
}

// RecordResolve appends one FlagAssignedEntry per record, a single
// ClientResolveInfoEntry summarizing the call, and rolls aggregated
// per-(flag,variant,reason) counters forward. Called only when the
// originating request had apply=true.
func (e *ExposureAccumulator) RecordResolve(resolveID string, client *ClientCredential, sdkID, sdkVersion, targetingKey string, records []flagEvaluationRecord) {
	atomic.AddUint64(&e.requestsSinceFlush, 1)

	now := e.clock.Now().UnixNano()
	clientID := ""
	if client != nil {
		clientID = client.ClientID
	}

	shard := e.shardFor(resolveID)
	shard.mu.Lock()
	for _, r := range records {
		shard.entries = append(shard.entries, FlagAssignedEntry{
			ResolveID:         resolveID,
			TargetingKey:      targetingKey,
			Flag:              r.Flag,
			Variant:           r.Variant,
			Rule:              r.Rule,
			Reason:            r.Reason,
			TimestampUnixNano: now,
			ClientID:          clientID,
			SDKID:             sdkID,
			SDKVersion:        sdkVersion,
		})
	}
	shard.mu.Unlock()

	e.mu.Lock()
	e.clientResolveInfo = append(e.clientResolveInfo, ClientResolveInfoEntry{
		ResolveID:         resolveID,
		ClientID:          clientID,
		SDKID:             sdkID,
		SDKVersion:        sdkVersion,
		TimestampUnixNano: now,
		FlagCount:         len(records),
	})
	for _, r := range records {
		key := flagResolveKey{Flag: r.Flag, Variant: r.Variant, Reason: r.Reason}
		e.flagResolveInfo[key]++
	}
	e.mu.Unlock()
}

// drainFlagAssigned removes up to limit entries from across the shards,
// taking each shard in index order until limit is reached, returning the
// drained entries.
func (e *ExposureAccumulator) drainFlagAssigned(limit int) []FlagAssignedEntry {
	var out []FlagAssignedEntry
	for i := range e.shards {
		if len(out) >= limit {
			break
		}
		shard := &e.shards[i]
		shard.mu.Lock()
		take := limit - len(out)
		if take >= len(shard.entries) {
			out = append(out, shard.entries...)
			shard.entries = nil
		} else {
			out = append(out, shard.entries[:take]...)
			shard.entries = append([]FlagAssignedEntry(nil), shard.entries[take:]...)
		}
		shard.mu.Unlock()
	}
	return out
}

func (e *ExposureAccumulator) pendingShardCount() int {
	total := 0
	for i := range e.shards {
		e.shards[i].mu.Lock()
		total += len(e.shards[i].entries)
		e.shards[i].mu.Unlock()
	}
	return total
}

// mergeFrom absorbs another accumulator's still-pending entries. Used
// by the façade on state swap: the outgoing state's accumulator tail is
// folded into the incoming state's accumulator rather than dropped.
func (e *ExposureAccumulator) mergeFrom(other *ExposureAccumulator) {
	if other == nil {
		return
	}
	drained := other.drainFlagAssigned(1 << 30)
	if len(drained) > 0 {
		shard := &e.shards[0]
		shard.mu.Lock()
		shard.entries = append(shard.entries, drained...)
		shard.mu.Unlock()
	}

	other.mu.Lock()
	carryClient := other.clientResolveInfo
	other.clientResolveInfo = nil
	carryFlag := other.flagResolveInfo
	other.flagResolveInfo = make(map[flagResolveKey]uint64)
	other.mu.Unlock()

	e.mu.Lock()
	e.clientResolveInfo = append(e.clientResolveInfo, carryClient...)
	for k, v := range carryFlag {
		e.flagResolveInfo[k] += v
	}
	e.mu.Unlock()
}

// flush drains up to maxBytes worth of flag_assigned entries (chunked
// at no more than 1000 per call) and, if this is the first chunk since
// the aggregated client/flag resolve info queues last emptied, attaches
// them along with telemetry. Returns nil, nil when all three queues are
// empty.
func (e *ExposureAccumulator) flush(maxBytes int) (*WriteFlagLogsRequest, error) {
	const maxChunkEntries = 1000

	drained := e.drainFlagAssigned(maxChunkEntries)
	entries := drained
	for {
		size := estimateJSONSize(entries)
		if size <= maxBytes || len(entries) <= 1 {
			break
		}
		entries = entries[:len(entries)-1]
	}
	if rest := drained[len(entries):]; len(rest) > 0 {
		shard := &e.shards[0]
		shard.mu.Lock()
		shard.entries = append(append([]FlagAssignedEntry(nil), rest...), shard.entries...)
		shard.mu.Unlock()
	}

	e.mu.Lock()
	hasAggregates := len(e.clientResolveInfo) > 0 || len(e.flagResolveInfo) > 0
	var clientInfo []ClientResolveInfoEntry
	var flagInfo []FlagResolveInfoEntry
	var telemetry *TelemetryData
	if hasAggregates {
		clientInfo = e.clientResolveInfo
		e.clientResolveInfo = nil
		flagInfo = make([]FlagResolveInfoEntry, 0, len(e.flagResolveInfo))
		for k, v := range e.flagResolveInfo {
			flagInfo = append(flagInfo, FlagResolveInfoEntry{Flag: k.Flag, Variant: k.Variant, Reason: k.Reason, Count: v})
		}
		e.flagResolveInfo = make(map[flagResolveKey]uint64)

		now := e.clock.Now().UnixNano()
		elapsedSeconds := float64(now-e.lastFlushAt) / 1e9
		reqCount := atomic.SwapUint64(&e.requestsSinceFlush, 0)
		rps := 0.0
		if elapsedSeconds > 0 {
			rps = float64(reqCount) / elapsedSeconds
		}
		telemetry = &TelemetryData{
			RequestsPerSecond: rps,
			WindowSeconds:     elapsedSeconds,
			SampledAtUnixNano: now,
		}
		e.lastFlushAt = now
	}
	e.mu.Unlock()

	if len(entries) == 0 && !hasAggregates {
		return nil, nil
	}

	req := &WriteFlagLogsRequest{
		FlagAssigned:      entries,
		ClientResolveInfo: clientInfo,
		FlagResolveInfo:   flagInfo,
	}
	if telemetry != nil {
		req.TelemetryData = *telemetry
	}
	return req, nil
}

// estimateJSONSize is a cheap upper-bound byte estimate used only to
// decide when a chunk needs trimming to fit a caller's max_bytes
// budget; it need not match json.Marshal's output exactly.
func estimateJSONSize(entries []FlagAssignedEntry) int {
	const perEntryOverhead = 160
	total := 2
	for _, e := range entries {
		total += perEntryOverhead + len(e.ResolveID) + len(e.TargetingKey) + len(e.Flag) + len(e.Variant) + len(e.Rule) + len(e.ClientID) + len(e.SDKID) + len(e.SDKVersion)
	}
	return total
}
