// Copyright 2026 The Statebridge Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.Contains(info, Version) {
		t.Errorf("Info() = %q, missing version %q", info, Version)
	}
	if !strings.Contains(info, GitCommit) {
		t.Errorf("Info() = %q, missing commit %q", info, GitCommit)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Info()) {
		t.Errorf("Full() = %q, missing Info()", full)
	}
	if !strings.Contains(full, runtime.Version()) {
		t.Errorf("Full() = %q, missing Go version", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() = %q, missing platform", full)
	}
}
