package daemon

import (
	"bytes"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teclabat/performance-go/pkg/xor"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	cfg := *DefaultConfig()
	cfg.DaemonID = "test-daemon"
	cfg.KeystoreFile = filepath.Join(t.TempDir(), "keys.db")
	cfg.PipelineSalt = base64.StdEncoding.EncodeToString([]byte("pipeline salt"))
	d, err := NewDaemon(cfg)
	if err != nil {
		t.Fatalf("NewDaemon failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func b64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func dispatchBytes(t *testing.T, d *Daemon, cmdLine string) []byte {
	t.Helper()
	resp := d.Mgmt.Dispatch(cmdLine)
	if strings.HasPrefix(resp, "Error:") {
		t.Fatalf("Dispatch(%q) failed: %s", cmdLine, resp)
	}
	out, err := base64.StdEncoding.DecodeString(resp)
	if err != nil {
		t.Fatalf("Dispatch(%q) response is not base64: %q", cmdLine, resp)
	}
	return out
}

func TestDispatchXor(t *testing.T) {
	d := newTestDaemon(t)

	out := dispatchBytes(t, d, "xor "+b64([]byte{0x41, 0x42, 0x43})+" "+b64([]byte{0x01}))
	if want := []byte{0x40, 0x43, 0x42}; !bytes.Equal(out, want) {
		t.Errorf("xor output = %v, want %v", out, want)
	}
}

func TestDispatchXorSaltWraparound(t *testing.T) {
	d := newTestDaemon(t)

	out := dispatchBytes(t, d, "xor "+b64(make([]byte, 5))+" "+b64([]byte{1, 2, 3}))
	if want := []byte{1, 2, 3, 1, 2}; !bytes.Equal(out, want) {
		t.Errorf("xor output = %v, want %v", out, want)
	}
}

func TestDispatchXorInvolution(t *testing.T) {
	d := newTestDaemon(t)

	data := []byte("attack at dawn")
	salt := b64([]byte("ICE"))

	once := dispatchBytes(t, d, "xor "+b64(data)+" "+salt)
	twice := dispatchBytes(t, d, "xor "+b64(once)+" "+salt)
	if !bytes.Equal(twice, data) {
		t.Errorf("xor applied twice = %q, want %q", twice, data)
	}
}

func TestDispatchXorUsage(t *testing.T) {
	d := newTestDaemon(t)

	want := "Error: Invalid command count, use: xor <string> <salt>"
	for _, cmdLine := range []string{"xor", "xor b25seQ==", "xor YQ== Yg== Yw=="} {
		if got := d.Mgmt.Dispatch(cmdLine); got != want {
			t.Errorf("Dispatch(%q) = %q, want %q", cmdLine, got, want)
		}
	}
}

func TestXorCommandEmptySalt(t *testing.T) {
	d := newTestDaemon(t)

	_, err := d.handleXorCommand([]string{b64([]byte("payload")), ""})
	if !errors.Is(err, xor.ErrEmptyKey) {
		t.Fatalf("handleXorCommand with empty salt: err = %v, want %v", err, xor.ErrEmptyKey)
	}
}

func TestDispatchXorBadBase64(t *testing.T) {
	d := newTestDaemon(t)

	resp := d.Mgmt.Dispatch("xor not-base64! " + b64([]byte("k")))
	if !strings.HasPrefix(resp, "Error:") || !strings.Contains(resp, "invalid base64 payload") {
		t.Errorf("Dispatch with bad payload = %q, want invalid base64 error", resp)
	}
}

func TestDispatchXorKeystoreSalt(t *testing.T) {
	d := newTestDaemon(t)

	salt := []byte("stored salt material")
	if err := d.Keystore().Put("api", salt); err != nil {
		t.Fatalf("seeding keystore: %v", err)
	}

	data := []byte("the payload")
	out := dispatchBytes(t, d, "xor "+b64(data)+" @api")

	want, err := xor.Apply(data, salt)
	if err != nil {
		t.Fatalf("xor.Apply: %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Errorf("xor with @api salt = %v, want %v", out, want)
	}
}

func TestDispatchXorKeystoreSaltMissing(t *testing.T) {
	d := newTestDaemon(t)

	resp := d.Mgmt.Dispatch("xor " + b64([]byte("data")) + " @nosuch")
	if !strings.HasPrefix(resp, "Error:") || !strings.Contains(resp, "not found") {
		t.Errorf("Dispatch with missing salt name = %q, want not-found error", resp)
	}
}

func TestDispatchNamespacedCommand(t *testing.T) {
	d := newTestDaemon(t)

	args := " " + b64([]byte("namespaced")) + " " + b64([]byte("salt"))
	bare := d.Mgmt.Dispatch("xor" + args)
	namespaced := d.Mgmt.Dispatch("performance::xor" + args)
	if bare != namespaced {
		t.Errorf("bare and namespaced responses differ: %q vs %q", bare, namespaced)
	}
}

func TestDispatchApplyParseRoundTrip(t *testing.T) {
	d := newTestDaemon(t)

	payload := []byte("round trip me through the pipeline")

	encoded := dispatchBytes(t, d, "apply "+b64(payload))
	if bytes.Equal(encoded, payload) {
		t.Fatal("apply returned the payload unchanged")
	}

	decoded := dispatchBytes(t, d, "parse "+b64(encoded))
	if !bytes.Equal(decoded, payload) {
		t.Errorf("parse(apply(payload)) = %q, want %q", decoded, payload)
	}
}

func TestDispatchApplyUsage(t *testing.T) {
	d := newTestDaemon(t)

	if got, want := d.Mgmt.Dispatch("apply"), "Error: Invalid command count, use: apply <payload>"; got != want {
		t.Errorf("Dispatch(\"apply\") = %q, want %q", got, want)
	}
}

func TestDispatchKeyLifecycle(t *testing.T) {
	d := newTestDaemon(t)

	salt := []byte("alpha salt value")

	if got := d.Mgmt.Dispatch("key put alpha " + b64(salt)); !strings.HasPrefix(got, "OK: stored salt 'alpha'") {
		t.Fatalf("key put = %q", got)
	}

	stored := dispatchBytes(t, d, "key get alpha")
	if !bytes.Equal(stored, salt) {
		t.Errorf("key get alpha = %v, want %v", stored, salt)
	}

	if got := d.Mgmt.Dispatch("key list"); !strings.Contains(got, "alpha") {
		t.Errorf("key list = %q, want it to mention alpha", got)
	}

	if got, want := d.Mgmt.Dispatch("key del alpha"), "OK: deleted salt 'alpha'"; got != want {
		t.Errorf("key del alpha = %q, want %q", got, want)
	}

	if got := d.Mgmt.Dispatch("key get alpha"); !strings.Contains(got, "not found") {
		t.Errorf("key get after delete = %q, want not-found error", got)
	}
}

func TestDispatchKeyUsage(t *testing.T) {
	d := newTestDaemon(t)

	cases := map[string]string{
		"key":              "Error: Invalid command count, use: key <put|get|del|list> [args...]",
		"key frobnicate":   "Error: Invalid command count, use: key <put|get|del|list> [args...]",
		"key put onlyname": "Error: Invalid command count, use: key put <name> <salt-b64>",
		"key get":          "Error: Invalid command count, use: key get <name>",
	}
	for cmdLine, want := range cases {
		if got := d.Mgmt.Dispatch(cmdLine); got != want {
			t.Errorf("Dispatch(%q) = %q, want %q", cmdLine, got, want)
		}
	}
}

func TestDispatchTransforms(t *testing.T) {
	d := newTestDaemon(t)

	resp := d.Mgmt.Dispatch("transforms")
	if !strings.HasPrefix(resp, "OK: Registered transforms:") {
		t.Fatalf("transforms = %q", resp)
	}
	for _, want := range []string{"xor (requires key)", "aesgcm (requires key)", "zstd"} {
		if !strings.Contains(resp, want) {
			t.Errorf("transforms response missing %q:\n%s", want, resp)
		}
	}
}

func TestDispatchPipeline(t *testing.T) {
	d := newTestDaemon(t)

	if got, want := d.Mgmt.Dispatch("pipeline"), "OK: xor"; got != want {
		t.Errorf("pipeline = %q, want %q", got, want)
	}
}

func TestDispatchVersion(t *testing.T) {
	d := newTestDaemon(t)

	resp := d.Mgmt.Dispatch("version")
	if !strings.Contains(resp, "performance "+PackageVersion) {
		t.Errorf("version = %q, want it to mention package version %s", resp, PackageVersion)
	}
}

func TestStatsCounting(t *testing.T) {
	d := newTestDaemon(t)

	dispatchBytes(t, d, "xor "+b64([]byte{0x41, 0x42, 0x43})+" "+b64([]byte{0x01}))
	d.Mgmt.Dispatch("xor") // usage error

	stats := d.GetStats()
	if stats.XorOps != 1 {
		t.Errorf("XorOps = %d, want 1", stats.XorOps)
	}
	if stats.CommandErrors != 1 {
		t.Errorf("CommandErrors = %d, want 1", stats.CommandErrors)
	}
	if stats.BytesIn != 3 || stats.BytesOut != 3 {
		t.Errorf("BytesIn/BytesOut = %d/%d, want 3/3", stats.BytesIn, stats.BytesOut)
	}

	resp := d.Mgmt.Dispatch("stats")
	if !strings.HasPrefix(resp, "OK: Daemon statistics:") {
		t.Errorf("stats = %q", resp)
	}
}

func TestNewDaemonEmptyPipelineSalt(t *testing.T) {
	cfg := *DefaultConfig()
	cfg.DaemonID = "test-daemon"
	cfg.KeystoreFile = filepath.Join(t.TempDir(), "keys.db")

	_, err := NewDaemon(cfg)
	if err == nil {
		t.Fatal("NewDaemon with xor pipeline and no salt should fail")
	}
	// The error names the missing configuration key instead of leaking the
	// core sentinel.
	if !strings.Contains(err.Error(), "pipeline_salt") {
		t.Errorf("err = %v, want it to name pipeline_salt", err)
	}
}

func TestNewDaemonRequiresID(t *testing.T) {
	cfg := *DefaultConfig()
	cfg.KeystoreFile = filepath.Join(t.TempDir(), "keys.db")
	cfg.DaemonID = ""

	if _, err := NewDaemon(cfg); err == nil {
		t.Fatal("NewDaemon without an ID should fail")
	}
}
