package tags

import "testing"

func TestTagValuesGet(t *testing.T) {
	values := tagValues{
		"TITLE":  {" So What "},
		"ARTIST": {"Miles Davis", "extra"},
	}
	if got := values.get("TITLE"); got != "So What" {
		t.Fatalf("get TITLE = %q", got)
	}
	if got := values.get("MISSING", "ARTIST"); got != "Miles Davis" {
		t.Fatalf("fallback key = %q", got)
	}
	if got := values.get("MISSING"); got != "" {
		t.Fatalf("missing key = %q", got)
	}
}

func TestTagValuesGetInt(t *testing.T) {
	values := tagValues{
		"TRACKNUMBER": {"3/9"},
		"DISCNUMBER":  {"2"},
		"BROKEN":      {"abc"},
	}
	if got := values.getInt("TRACKNUMBER"); got != 3 {
		t.Fatalf("track number = %d", got)
	}
	if got := values.getInt("DISCNUMBER"); got != 2 {
		t.Fatalf("disc number = %d", got)
	}
	if got := values.getInt("BROKEN"); got != 0 {
		t.Fatalf("broken number = %d", got)
	}
}

func TestFormatQuality(t *testing.T) {
	if got := formatQuality("/music/x.m4a", 256); got != "M4A 256kbps" {
		t.Fatalf("quality = %q", got)
	}
	if got := formatQuality("/music/x.flac", 0); got != "FLAC" {
		t.Fatalf("quality without bitrate = %q", got)
	}
}
