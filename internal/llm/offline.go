package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// Offline is a deterministic generator used in dev when no provider keys are set.
// Output depends only on the request, so repeated runs score identically.
type Offline struct{}

func (Offline) Name() string { return "offline" }

func (Offline) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := promptHash(req.Prompt)

	switch req.Kind {
	case KindSearchQueries:
		focuses := []string{"claims", "method", "apparatus", "system", "composition", "use", "process", "device", "interface", "material"}
		terms := keyTerms(req.Prompt, 6)
		type query struct {
			Text  string `json:"text"`
			Focus string `json:"focus"`
		}
		out := struct {
			Queries []query `json:"queries"`
		}{}
		for i, focus := range focuses {
			text := focus
			if len(terms) > 0 {
				text = fmt.Sprintf("%s %s %s", terms[i%len(terms)], terms[(i+1)%len(terms)], focus)
			}
			out.Queries = append(out.Queries, query{Text: text, Focus: focus})
		}
		return marshal(out)
	case KindConflictScore:
		likelihoods := []string{"low", "medium", "high"}
		out := struct {
			OverlapPercentage float64 `json:"overlapPercentage"`
			Description       string  `json:"description"`
			Likelihood        string  `json:"likelihood"`
		}{
			OverlapPercentage: float64(seed % 101),
			Description:       "Offline estimate based on shared terminology between the invention and the reference.",
			Likelihood:        likelihoods[(seed/101)%3],
		}
		return marshal(out)
	case KindMitigationPlan:
		out := struct {
			Immediate []string `json:"immediate"`
			NearTerm  []string `json:"nearTerm"`
			LongTerm  []string `json:"longTerm"`
		}{
			Immediate: []string{"Review the highest severity references with patent counsel."},
			NearTerm:  []string{"Document design differences against overlapping claims."},
			LongTerm:  []string{"Monitor continuation filings from the listed assignees."},
		}
		return marshal(out)
	case KindExecutiveSummary:
		return "Offline summary: the invention was compared against the retrieved prior art. " +
			"Severity scores reflect estimated claim overlap, legal status and infringement likelihood.", nil
	default:
		return "", fmt.Errorf("offline generator: unsupported kind %q", req.Kind)
	}
}

func promptHash(prompt string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return h.Sum32()
}

func keyTerms(prompt string, limit int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, field := range strings.Fields(strings.ToLower(prompt)) {
		word := strings.Trim(field, ".,;:!?\"'()[]{}")
		if len(word) < 6 {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
		if len(out) == limit {
			break
		}
	}
	return out
}

func marshal(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
