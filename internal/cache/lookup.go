package cache

import "github.com/qlty-sh/qlty-core/internal/issue"

// PlanInput is the subset of an InvocationPlan (plus its resolved tool
// fingerprint) Lookup needs to key every target file independently. It is
// defined here rather than imported from internal/planner to avoid a
// cache->planner dependency; the Executor adapts an InvocationPlan into one
// of these per invocation.
type PlanInput struct {
	ToolFingerprint   string
	DriverName        string
	DriverVersion     string
	Targets           []string
	ConfigFilePaths   []string
	AffectsCachePaths []string
}

// LookupResult partitions a PlanInput's targets into cache hits (with their
// stored FileResult) and misses (targets the Driver must still run on), and
// records the computed key for every target so a subsequent Put can reuse
// it without recomputing file hashes.
type LookupResult struct {
	Hits   map[string]issue.FileResult
	Misses []string
	Keys   map[string]string // target path -> cache key
}

// Lookup implements §4.6's bulk lookup(plan) -> (cache_hits, cache_misses):
// for every target in in.Targets, compute its cache key and check whether
// an entry already exists. Cache hits short-circuit that file's invocation
// entirely.
func (c *Cache) Lookup(in PlanInput) (*LookupResult, error) {
	result := &LookupResult{
		Hits: make(map[string]issue.FileResult),
		Keys: make(map[string]string, len(in.Targets)),
	}

	for _, target := range in.Targets {
		key, err := ComputeKey(KeyInput{
			ToolFingerprint:   in.ToolFingerprint,
			DriverName:        in.DriverName,
			DriverVersion:     in.DriverVersion,
			TargetPath:        target,
			ConfigFilePaths:   in.ConfigFilePaths,
			AffectsCachePaths: in.AffectsCachePaths,
		})
		if err != nil {
			return nil, err
		}
		result.Keys[target] = key

		fr, hit, err := c.Get(key)
		if err != nil {
			return nil, err
		}
		if hit {
			result.Hits[target] = fr
		} else {
			result.Misses = append(result.Misses, target)
		}
	}

	return result, nil
}
