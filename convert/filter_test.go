package convert

import (
	"testing"
)

func TestNameFilterRename(t *testing.T) {
	f := NameFilter{
		Prefix:      "model.language_model.",
		Replacement: "model.",
		Keep:        []string{"lm_head.weight"},
	}

	cases := []struct {
		name string
		want string
		keep bool
	}{
		{"model.language_model.layers.0.self_attn.q_proj.weight", "model.layers.0.self_attn.q_proj.weight", true},
		{"model.language_model.embed_tokens.weight", "model.embed_tokens.weight", true},
		{"model.language_model.norm.weight", "model.norm.weight", true},
		{"lm_head.weight", "lm_head.weight", true},

		// matching is anchored at position zero
		{"visual.model.language_model.weight", "", false},
		{"xmodel.language_model.layers.0.weight", "", false},

		{"model.visual.patch_embed.weight", "", false},
		{"model.visual.blocks.3.attn.qkv.weight", "", false},
		{"lm_head.weight.scale", "", false},
		{"lm_head", "", false},
		{"", "", false},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := f.Rename(tt.name)
			if keep != tt.keep {
				t.Fatalf("Rename(%q) keep = %v, want %v", tt.name, keep, tt.keep)
			}
			if got != tt.want {
				t.Fatalf("Rename(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestNameFilterRemainderVerbatim(t *testing.T) {
	f := NameFilter{Prefix: "model.language_model.", Replacement: "model."}

	names := []string{
		"model.language_model.layers.35.mlp.down_proj.weight",
		"model.language_model.layers.0.input_layernorm.weight",
		"model.language_model.a..b", // pathological but must survive byte for byte
	}

	for _, name := range names {
		got, keep := f.Rename(name)
		if !keep {
			t.Fatalf("Rename(%q) keep = false, want true", name)
		}
		if want := "model." + name[len("model.language_model."):]; got != want {
			t.Fatalf("Rename(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestNameFilterZeroValue(t *testing.T) {
	var f NameFilter
	if got, keep := f.Rename("model.language_model.x"); keep {
		t.Fatalf("zero filter kept %q", got)
	}
}
