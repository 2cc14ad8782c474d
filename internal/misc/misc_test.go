package misc

import (
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"EC2/CPUUtilization", "ec2.cpuutilization"},
		{"apps/My App/response.time", "apps.my_app.response_time"},
		{"disk.*.usage", "disk_all_usage"},
		{"a//b", "a.b"},
		{"plain_name", "plain_name"},
	}
	for _, tc := range cases {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Errorf("SanitizeName(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestCacheKey_StableAndSafe(t *testing.T) {
	t.Parallel()

	a := CacheKey("/applications/42/metrics.json?name=HttpDispatcher")
	b := CacheKey("/applications/42/metrics.json?name=HttpDispatcher")
	c := CacheKey("/applications/43/metrics.json")

	if a != b {
		t.Fatalf("same lookup hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Fatal("different lookups collided")
	}
	if len(a) != 64 {
		t.Fatalf("unexpected key length %d", len(a))
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("TEST_DUR_SECONDS", "30")
	if d := GetDuration("TEST_DUR_SECONDS", 0); d != 30*time.Second {
		t.Fatalf("got %v", d)
	}
	t.Setenv("TEST_DUR_PARSE", "1m30s")
	if d := GetDuration("TEST_DUR_PARSE", 0); d != 90*time.Second {
		t.Fatalf("got %v", d)
	}
	if d := GetDuration("TEST_DUR_MISSING", 5*time.Second); d != 5*time.Second {
		t.Fatalf("got %v", d)
	}
}

func TestGetBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !GetBool("TEST_BOOL", false) {
		t.Fatal("want true")
	}
	t.Setenv("TEST_BOOL", "0")
	if GetBool("TEST_BOOL", true) {
		t.Fatal("want false")
	}
	if !GetBool("TEST_BOOL_MISSING", true) {
		t.Fatal("want default true")
	}
}
