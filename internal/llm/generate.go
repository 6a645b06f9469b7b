package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"iprisk-backend/internal/retry"
)

// GenerateJSON runs req through the chain and decodes the first provider
// output that parses into T and passes validate. Output that fails either
// check is a permanent failure for that provider, so the chain moves on.
func GenerateJSON[T any](ctx context.Context, chain *Chain, req Request, validate func(T) error) (T, error) {
	req.JSON = true
	var out T
	err := chain.Run(ctx, func(ctx context.Context, g Generator) error {
		raw, err := g.Generate(ctx, req)
		if err != nil {
			return err
		}
		var decoded T
		if err := decodeStrict(StripCodeFence(raw), &decoded); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %s: %v", ErrMalformedOutput, req.Kind, err))
		}
		if validate != nil {
			if err := validate(decoded); err != nil {
				return retry.Permanent(fmt.Errorf("%w: %s: %v", ErrMalformedOutput, req.Kind, err))
			}
		}
		out = decoded
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// GenerateText runs req through the chain and returns the first non-blank output.
func GenerateText(ctx context.Context, chain *Chain, req Request) (string, error) {
	req.JSON = false
	var out string
	err := chain.Run(ctx, func(ctx context.Context, g Generator) error {
		raw, err := g.Generate(ctx, req)
		if err != nil {
			return err
		}
		text := strings.TrimSpace(raw)
		if text == "" {
			return retry.Permanent(fmt.Errorf("%w: %s", ErrEmptyOutput, req.Kind))
		}
		out = text
		return nil
	})
	return out, err
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		trimmed = ""
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func decodeStrict(raw string, v any) error {
	if raw == "" {
		return ErrEmptyOutput
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON object")
	}
	return nil
}
