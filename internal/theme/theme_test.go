package theme

import "testing"

func TestParse(t *testing.T) {
	cases := map[string]string{
		"Classic":      "classic",
		"  NEON ":      "neon",
		"arabic-touch": "arabictouch",
		"ArabicTouch":  "arabictouch",
		"arabic_touch": "arabictouch",
	}
	for in, want := range cases {
		got, ok := Parse(in)
		if !ok || got.Key != want {
			t.Fatalf("Parse(%q) = %+v, %v", in, got, ok)
		}
	}
	if _, ok := Parse("vaporwave"); ok {
		t.Fatalf("expected unknown theme")
	}
}

func TestRegistry(t *testing.T) {
	all := All()
	if len(all) != 13 {
		t.Fatalf("expected 13 themes, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("themes not sorted: %s before %s", all[i-1].Key, all[i].Key)
		}
	}
	arabic, _ := Parse("ArabicTouch")
	if arabic.Direction != RTL || arabic.DefaultLocale != "ar" {
		t.Fatalf("unexpected arabic theme: %+v", arabic)
	}
	if d := MustDefault(); d.Name != "Classic" || d.Direction != LTR {
		t.Fatalf("unexpected default: %+v", d)
	}
}
