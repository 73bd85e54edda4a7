package modulation_test

import (
	"testing"

	"github.com/example/ttscore/internal/modulation"
)

func TestStrip_NoMarkers_ReturnsInputUnchanged(t *testing.T) {
	out, segs := modulation.Strip("hello there", "af_nicole")
	if out != "hello there" {
		t.Errorf("out = %q, want unchanged", out)
	}
	if len(segs) != 0 {
		t.Errorf("segs = %v, want none", segs)
	}
}

func TestStrip_SingleParens_Whisper(t *testing.T) {
	out, segs := modulation.Strip("hello (quietly) there", "af_nicole")
	if out != "hello quietly there" {
		t.Fatalf("out = %q, want %q", out, "hello quietly there")
	}
	if len(segs) != 1 {
		t.Fatalf("segs = %v, want 1", segs)
	}
	seg := segs[0]
	if seg.Mod.Tone != modulation.ToneWhisper {
		t.Errorf("Tone = %v, want whisper", seg.Mod.Tone)
	}
	if seg.Mod.BlendVoice != "af_nicole" || seg.Mod.BlendRatio != 0.8 {
		t.Errorf("blend = %q/%v, want af_nicole/0.8", seg.Mod.BlendVoice, seg.Mod.BlendRatio)
	}
	if out[seg.Start:seg.End] != "quietly" {
		t.Errorf("segment text = %q, want %q", out[seg.Start:seg.End], "quietly")
	}
}

func TestStrip_NestedParens_DeepWhisper(t *testing.T) {
	out, segs := modulation.Strip("((a secret))", "af_nicole")
	if out != "a secret" {
		t.Fatalf("out = %q, want %q", out, "a secret")
	}
	if len(segs) != 1 || segs[0].Mod.Tone != modulation.ToneDeepWhisper {
		t.Fatalf("segs = %v, want one deep_whisper segment", segs)
	}
	if segs[0].Mod.VolumeMult != 0.4 || segs[0].Mod.SpeedMult != 0.8 {
		t.Errorf("mod = %+v, want volume 0.4 / speed 0.8", segs[0].Mod)
	}
}

func TestStrip_NoWhisperVoiceConfigured_BlendDisabled(t *testing.T) {
	_, segs := modulation.Strip("(quiet)", "")
	if len(segs) != 1 {
		t.Fatalf("segs = %v, want 1", segs)
	}
	if segs[0].Mod.BlendVoice != "" || segs[0].Mod.BlendRatio != 0 {
		t.Errorf("mod = %+v, want blend disabled", segs[0].Mod)
	}
	if segs[0].Mod.VolumeMult != 0.55 {
		t.Errorf("VolumeMult = %v, want 0.55 (multiplier still applies without voice blend)", segs[0].Mod.VolumeMult)
	}
}

func TestStrip_BracketTags(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want modulation.Tone
	}{
		{"whisper", "[whisper]a[/whisper]", modulation.ToneWhisper},
		{"soft", "[soft]a[/soft]", modulation.ToneSoft},
		{"loud", "[loud]a[/loud]", modulation.ToneLoud},
		{"fast", "[fast]a[/fast]", modulation.ToneFast},
		{"slow", "[slow]a[/slow]", modulation.ToneSlow},
		{"aside", "[aside]a[/aside]", modulation.ToneAside},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, segs := modulation.Strip(tc.in, "af_nicole")
			if out != "a" {
				t.Fatalf("out = %q, want %q", out, "a")
			}
			if len(segs) != 1 || segs[0].Mod.Tone != tc.want {
				t.Fatalf("segs = %v, want one %v segment", segs, tc.want)
			}
		})
	}
}

func TestStrip_EmphasisAndQuotes(t *testing.T) {
	out, segs := modulation.Strip(`**bold** *soft* "quoted"`, "af_nicole")
	if out != "bold soft quoted" {
		t.Fatalf("out = %q, want %q", out, "bold soft quoted")
	}
	if len(segs) != 3 {
		t.Fatalf("segs = %v, want 3", segs)
	}
	wantTones := []modulation.Tone{modulation.ToneStrong, modulation.ToneEmphasis, modulation.ToneQuoted}
	for i, want := range wantTones {
		if segs[i].Mod.Tone != want {
			t.Errorf("segs[%d].Tone = %v, want %v", i, segs[i].Mod.Tone, want)
		}
	}
}

func TestOverlapping_FindsSegmentContainingRange(t *testing.T) {
	_, segs := modulation.Strip("hello (quietly) there", "af_nicole")
	if len(segs) != 1 {
		t.Fatalf("segs = %v, want 1", segs)
	}
	seg := segs[0]

	if _, ok := modulation.Overlapping(segs, seg.Start, seg.End); !ok {
		t.Error("expected overlap for the segment's own range")
	}
	if _, ok := modulation.Overlapping(segs, 0, seg.Start); ok {
		t.Error("expected no overlap before the segment")
	}
	if _, ok := modulation.Overlapping(segs, seg.End, seg.End+5); ok {
		t.Error("expected no overlap after the segment")
	}
}
