package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/unkn0wn-root/remoteval"
)

func runOK(t *testing.T, args ...string) (stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	if err := run(args, &out, &errb); err != nil {
		t.Fatalf("run(%q): %v\nstderr: %s", args, err, errb.String())
	}
	return out.String(), errb.String()
}

func results(t *testing.T, out string) []remoteval.EvaluateResult {
	t.Helper()
	var res []remoteval.EvaluateResult
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		var r remoteval.EvaluateResult
		if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("unmarshal %s: %v", line, err)
		}
		res = append(res, r)
	}
	return res
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ==============================
// Evaluate
// ==============================

func TestRunEvaluateJSON(t *testing.T) {
	out, _ := runOK(t, "--ownership", "none", "1 + 1")
	if !strings.Contains(out, `"result":{"type":"number","value":2}`) || !strings.Contains(out, `"type":"success"`) {
		t.Fatalf("out = %s", out)
	}
}

func TestRunHandleStableAcrossExpressions(t *testing.T) {
	out, _ := runOK(t, "globalThis.o = {}; o", "o")
	res := results(t, out)
	if len(res) != 2 {
		t.Fatalf("got %d results", len(res))
	}
	h0, h1 := res[0].Result.Handle, res[1].Result.Handle
	if h0 == "" || h0 != h1 {
		t.Fatalf("handles %q, %q", h0, h1)
	}
}

func TestRunException(t *testing.T) {
	out, _ := runOK(t, `throw new Error("boom")`)
	res := results(t, out)
	if res[0].Type != remoteval.ResultException || res[0].ExceptionDetails.Text != "Error: boom" {
		t.Fatalf("out = %s", out)
	}
}

func TestRunCall(t *testing.T) {
	out, _ := runOK(t, "--call",
		"--arg", `{"type":"number","value":1}`,
		"--arg", `{"type":"number","value":2}`,
		"(a, b) => a + b")
	if !strings.Contains(out, `"result":{"type":"number","value":3}`) {
		t.Fatalf("out = %s", out)
	}
}

func TestRunBinaryFormats(t *testing.T) {
	for _, f := range []string{"cbor", "msgpack", "protobuf"} {
		out, _ := runOK(t, "--format", f, "true")
		if !strings.HasPrefix(out, "success ") {
			t.Fatalf("%s: out = %q", f, out)
		}
	}
}

func TestRunConsole(t *testing.T) {
	_, errOut := runOK(t, `console.log("hi")`)
	if !strings.Contains(errOut, `console.info {"type":"string","value":"hi"}`) {
		t.Fatalf("stderr = %s", errOut)
	}
}

func TestRunDocument(t *testing.T) {
	page := writeFile(t, "page.html", `<html><body><p id="greeting">hello</p></body></html>`)
	out, _ := runOK(t, "--html", page, "--ownership", "none", `document.getElementById("greeting").textContent`)
	if !strings.Contains(out, `"result":{"type":"string","value":"hello"}`) {
		t.Fatalf("out = %s", out)
	}
}

// ==============================
// Leases and config
// ==============================

func TestRunWithLeaseStores(t *testing.T) {
	for _, store := range []string{"ristretto", "bigcache"} {
		out, _ := runOK(t, "--leases", store, "({})")
		res := results(t, out)
		if res[0].Result == nil || res[0].Result.Handle == "" {
			t.Fatalf("%s: out = %s", store, out)
		}
	}
}

func TestRunConfigFileWithFlagOverride(t *testing.T) {
	cfg := writeFile(t, "remoteval.yaml", `
format: msgpack
depth: 0
leases:
  store: bigcache
  ttl: 1m
`)
	out, _ := runOK(t, "--config", cfg, "--format", "json", "[[1]]")
	res := results(t, out)
	rv := res[0].Result
	if rv == nil || rv.Value != nil || rv.Handle == "" {
		t.Fatalf("out = %s", out)
	}
}

func TestLoadConfig(t *testing.T) {
	got, err := loadConfig("")
	if err != nil || got != defaultConfig() {
		t.Fatalf("empty path = %+v, %v", got, err)
	}

	path := writeFile(t, "c.yaml", "ownership: none\nidle_ttl: 30s\nleases:\n  store: redis\n  redis_addr: cache:6379\n  redis_prefix: \"bridge-a:\"\n")
	got, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got.Ownership != "none" || got.IdleTTL != 30*time.Second || got.Leases.Store != "redis" || got.Leases.RedisAddr != "cache:6379" || got.Leases.RedisPrefix != "bridge-a:" {
		t.Fatalf("config = %+v", got)
	}
	if got.Format != "json" || got.Leases.TTL != 10*time.Minute {
		t.Fatalf("defaults lost: %+v", got)
	}

	if _, err := loadConfig(writeFile(t, "bad.yaml", "depth: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunLogBackends(t *testing.T) {
	for _, backend := range []string{"zap", "logrus", "slog"} {
		_, errOut := runOK(t, "--log-backend", backend, "--log-level", "debug", "1")
		if !strings.Contains(errOut, "realm created") {
			t.Fatalf("%s: stderr = %s", backend, errOut)
		}
	}
}

func TestRunTraceHooks(t *testing.T) {
	_, errOut := runOK(t, "--trace-hooks", "({})")
	if !strings.Contains(errOut, "remoteval.handle_minted") {
		t.Fatalf("no mint traced: %s", errOut)
	}
	if !strings.Contains(errOut, "reason=realm_closed") {
		t.Fatalf("no close release traced: %s", errOut)
	}
}

func TestRunErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"--format", "xml", "1"},
		{"--ownership", "all", "1"},
		{"--leases", "memcached", "1"},
		{"--log-level", "loud", "1"},
		{"--log-backend", "glog", "1"},
	}
	for _, args := range cases {
		var out, errb bytes.Buffer
		if err := run(args, &out, &errb); err == nil {
			t.Errorf("run(%q) succeeded", args)
		}
	}
}
