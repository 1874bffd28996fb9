package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type librarySettings struct {
	Name        string      `json:"name"`
	Timepoint   int         `json:"timepoint"`
	Identifiers identifiers `json:"identifiers"`
	Tags        []string    `json:"tags"`
}

type identifiers struct {
	MinCount int `json:"min count"`
}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		ctx       Context
		input     map[string]any
		opts      []DecoderOption[librarySettings]
		expect    librarySettings
		expectErr string
	}{
		{
			name: "plain decode",
			ctx:  Context{Name: "lib1", Kind: "id_only"},
			input: map[string]any{
				"name":        "lib1",
				"timepoint":   0,
				"identifiers": map[string]any{"min count": 5},
			},
			expect: librarySettings{Name: "lib1", Identifiers: identifiers{MinCount: 5}},
		},
		{
			name: "pre hook splits timepoint label",
			ctx:  Context{Name: "lib2"},
			input: map[string]any{
				"name":      "lib2",
				"timepoint": "t3",
			},
			opts: []DecoderOption[librarySettings]{
				WithPreHook[librarySettings](timepointLabelPreHook),
			},
			expect: librarySettings{Name: "lib2", Timepoint: 3},
		},
		{
			name:  "post hook tags by kind",
			ctx:   Context{Name: "lib3", Kind: "id_only"},
			input: map[string]any{"name": "lib3"},
			opts: []DecoderOption[librarySettings]{
				WithPostHook[librarySettings](kindTagPostHook),
			},
			expect: librarySettings{Name: "lib3", Tags: []string{"id_only:lib3"}},
		},
		{
			name:  "unknown fields rejected",
			ctx:   Context{Name: "lib4", Kind: "id_only"},
			input: map[string]any{"name": "lib4", "bogus": true},
			opts: []DecoderOption[librarySettings]{
				WithDisallowUnknownFields[librarySettings](),
			},
			expectErr: `decode id_only "lib4"`,
		},
		{
			name:  "pre hook failure wraps",
			ctx:   Context{Name: "lib5"},
			input: map[string]any{"timepoint": "later"},
			opts: []DecoderOption[librarySettings]{
				WithPreHook[librarySettings](timepointLabelPreHook),
			},
			expectErr: "pre-hook",
		},
		{
			name:  "custom decoder",
			ctx:   Context{Kind: "id_only"},
			input: map[string]any{"raw": `{"name":"lib6","timepoint":2}`},
			opts: []DecoderOption[librarySettings]{
				WithCustomDecoder[librarySettings](rawStringDecoder),
			},
			expect: librarySettings{Name: "lib6", Timepoint: 2},
		},
		{
			name:      "nil payload",
			ctx:       Context{},
			input:     nil,
			expectErr: "payload is nil for settings",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder[librarySettings](tc.opts...)
			result, err := decoder.Decode(tc.ctx, tc.input)

			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, result) {
				t.Fatalf("decoded settings mismatch:\nwant: %#v\n got: %#v", tc.expect, result)
			}
		})
	}
}

func TestDecoderDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"name": "lib", "timepoint": "t1"}
	decoder := NewDecoder[librarySettings](WithPreHook[librarySettings](timepointLabelPreHook))
	if _, err := decoder.Decode(Context{Name: "lib"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["timepoint"] != "t1" {
		t.Fatalf("input mutated: %#v", input)
	}
}

func TestDecoderUseNumber(t *testing.T) {
	var seen any
	decoder := NewDecoder[librarySettings](
		WithUseNumber[librarySettings](),
		WithDecoderConfig[librarySettings](func(dec *json.Decoder) {
			seen = dec
		}),
	)
	got, err := decoder.Decode(Context{Name: "lib"}, map[string]any{"timepoint": 4})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Timepoint != 4 {
		t.Fatalf("expected timepoint 4, got %d", got.Timepoint)
	}
	if seen == nil {
		t.Fatalf("decoder config hook not invoked")
	}
}

func timepointLabelPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["timepoint"].(string)
	if !ok {
		return payload, nil
	}
	var tp int
	if _, err := fmt.Sscanf(value, "t%d", &tp); err != nil {
		return nil, fmt.Errorf("invalid timepoint label %q", value)
	}
	payload["timepoint"] = tp
	return payload, nil
}

func kindTagPostHook(ctx Context, settings *librarySettings) error {
	if settings == nil {
		return errors.New("settings is nil")
	}
	if len(settings.Tags) == 0 {
		settings.Tags = []string{fmt.Sprintf("%s:%s", ctx.Kind, settings.Name)}
	}
	return nil
}

func rawStringDecoder(_ Context, payload map[string]any) (librarySettings, error) {
	var out librarySettings
	raw, ok := payload["raw"].(string)
	if !ok || raw == "" {
		return out, errors.New("missing raw settings string")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
