package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	old := GetVersion()
	defer SetVersion(old)
	SetVersion("test-version")

	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if !strings.Contains(out.String(), "authrelay version test-version") {
		t.Errorf("unexpected version output: %q", out.String())
	}
}
