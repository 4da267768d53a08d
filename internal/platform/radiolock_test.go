package platform

import "testing"

func TestLockComponent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		want     string
	}{
		{name: "keeps safe runes", raw: "antbridge-v1.2_3", fallback: "app", want: "antbridge-v1.2_3"},
		{name: "replaces path separators", raw: "/dev/ttyUSB0", fallback: "app", want: "dev_ttyUSB0"},
		{name: "usb selector", raw: "0fcf:{1008,1009}", fallback: "app", want: "0fcf__1008_1009"},
		{name: "empty uses fallback", raw: "   ", fallback: "default", want: "default"},
		{name: "all unsupported uses fallback", raw: "[]{}", fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		if got := lockComponent(tc.raw, tc.fallback); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
