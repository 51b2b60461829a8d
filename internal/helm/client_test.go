// Copyright 2025 The Storeforge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package helm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) run(_ context.Context, binary string, args []string) (string, string, error) {
	call := append([]string{binary}, args...)
	f.calls = append(f.calls, call)
	return f.stdout, f.stderr, f.err
}

func newTestClient(f *fakeRunner) *Client {
	return &Client{
		binary: "helm",
		log:    zap.NewNop(),
		runner: f,
	}
}

func TestClient_Install_BuildsCommand(t *testing.T) {
	f := &fakeRunner{}
	c := newTestClient(f)

	values := map[string]string{
		"storeName":          "alpha",
		"mysql.rootPassword": "hunter2",
		"ingress.className":  "nginx",
	}
	err := c.Install(context.Background(), "alpha", "helm/woocommerce", "store-alpha", values, 10*time.Minute)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if len(f.calls) != 1 {
		t.Fatalf("expected one helm invocation, got %d", len(f.calls))
	}
	got := strings.Join(f.calls[0], " ")
	want := "helm install alpha helm/woocommerce --namespace store-alpha --create-namespace --timeout 600s --wait" +
		" --set ingress.className=nginx --set mysql.rootPassword=hunter2 --set storeName=alpha"
	if got != want {
		t.Errorf("expected command %q, got %q", want, got)
	}
}

func TestClient_Install_AbsorbsNameInUse(t *testing.T) {
	f := &fakeRunner{
		stderr: "Error: INSTALLATION FAILED: cannot re-use a name that is still in use",
		err:    errors.New("exit status 1"),
	}
	c := newTestClient(f)

	if err := c.Install(context.Background(), "alpha", "helm/woocommerce", "store-alpha", nil, time.Minute); err != nil {
		t.Errorf("Install() error = %v, want nil for re-used release name", err)
	}
}

func TestClient_Install_Timeout(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
	}{
		{name: "helm wait timeout", stderr: "Error: INSTALLATION FAILED: timed out waiting for the condition"},
		{name: "context deadline", stderr: "Error: INSTALLATION FAILED: context deadline exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{stderr: tt.stderr, err: errors.New("exit status 1")}
			c := newTestClient(f)

			err := c.Install(context.Background(), "alpha", "helm/woocommerce", "store-alpha", nil, 2*time.Minute)

			var timeoutErr *TimeoutError
			if !errors.As(err, &timeoutErr) {
				t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
			}
			if timeoutErr.Release != "alpha" {
				t.Errorf("expected release 'alpha', got %s", timeoutErr.Release)
			}
			if timeoutErr.Timeout != 2*time.Minute {
				t.Errorf("expected timeout 2m, got %s", timeoutErr.Timeout)
			}
		})
	}
}

func TestClient_Install_ExecError(t *testing.T) {
	f := &fakeRunner{
		stderr: "Error: INSTALLATION FAILED: chart directory not found",
		err:    errors.New("exit status 1"),
	}
	c := newTestClient(f)

	err := c.Install(context.Background(), "alpha", "helm/missing", "store-alpha", nil, time.Minute)

	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError, got %T: %v", err, err)
	}
	if execErr.Op != "install" {
		t.Errorf("expected op 'install', got %s", execErr.Op)
	}
	if !strings.Contains(execErr.Stderr, "chart directory not found") {
		t.Errorf("expected stderr to carry helm message, got %q", execErr.Stderr)
	}
}

func TestClient_Uninstall(t *testing.T) {
	tests := []struct {
		name    string
		stderr  string
		runErr  error
		wantErr bool
	}{
		{
			name: "successful uninstall",
		},
		{
			name:   "missing release absorbed",
			stderr: "Error: uninstall: Release not loaded: alpha: release: not found",
			runErr: errors.New("exit status 1"),
		},
		{
			name:    "other failure surfaces",
			stderr:  "Error: uninstall: cluster unreachable",
			runErr:  errors.New("exit status 1"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{stderr: tt.stderr, err: tt.runErr}
			c := newTestClient(f)

			err := c.Uninstall(context.Background(), "alpha", "store-alpha")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Uninstall() error = %v, wantErr %v", err, tt.wantErr)
			}

			got := strings.Join(f.calls[0], " ")
			want := "helm uninstall alpha --namespace store-alpha"
			if got != want {
				t.Errorf("expected command %q, got %q", want, got)
			}
		})
	}
}

func TestClient_Status(t *testing.T) {
	t.Run("parses status json", func(t *testing.T) {
		f := &fakeRunner{
			stdout: `{"name":"alpha","namespace":"store-alpha","version":1,` +
				`"info":{"status":"deployed","description":"Install complete","last_deployed":"2025-06-01T12:00:00Z"}}`,
		}
		c := newTestClient(f)

		status, err := c.Status(context.Background(), "alpha", "store-alpha")
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if status.Name != "alpha" || status.Info.Status != "deployed" {
			t.Errorf("unexpected status parse: %+v", status)
		}

		got := strings.Join(f.calls[0], " ")
		want := "helm status alpha --namespace store-alpha --output json"
		if got != want {
			t.Errorf("expected command %q, got %q", want, got)
		}
	})

	t.Run("missing release", func(t *testing.T) {
		f := &fakeRunner{
			stderr: "Error: release: not found",
			err:    errors.New("exit status 1"),
		}
		c := newTestClient(f)

		_, err := c.Status(context.Background(), "ghost", "store-ghost")
		if !errors.Is(err, ErrReleaseNotFound) {
			t.Errorf("expected ErrReleaseNotFound, got %v", err)
		}
	})
}

func TestClient_List(t *testing.T) {
	t.Run("scoped to namespace", func(t *testing.T) {
		f := &fakeRunner{
			stdout: `[{"name":"alpha","namespace":"store-alpha","revision":"1",` +
				`"status":"deployed","chart":"woocommerce-0.1.0","app_version":"6.5"}]`,
		}
		c := newTestClient(f)

		releases, err := c.List(context.Background(), "store-alpha")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(releases) != 1 || releases[0].Name != "alpha" || releases[0].Status != "deployed" {
			t.Errorf("unexpected releases: %+v", releases)
		}

		got := strings.Join(f.calls[0], " ")
		want := "helm list --output json --namespace store-alpha"
		if got != want {
			t.Errorf("expected command %q, got %q", want, got)
		}
	})

	t.Run("all namespaces when unscoped", func(t *testing.T) {
		f := &fakeRunner{stdout: `[]`}
		c := newTestClient(f)

		if _, err := c.List(context.Background(), ""); err != nil {
			t.Fatalf("List() error = %v", err)
		}

		got := strings.Join(f.calls[0], " ")
		want := "helm list --output json --all-namespaces"
		if got != want {
			t.Errorf("expected command %q, got %q", want, got)
		}
	})
}

func TestRedactedCommand(t *testing.T) {
	args := []string{
		"install", "alpha", "helm/woocommerce",
		"--set", "wordpress.adminPassword=s3cret!",
		"--set", "mysql.rootPassword=alsosecret",
		"--set", "storeName=alpha",
	}

	got := redactedCommand("helm", args)

	if strings.Contains(got, "s3cret!") || strings.Contains(got, "alsosecret") {
		t.Errorf("expected passwords to be masked, got %q", got)
	}
	if !strings.Contains(got, "wordpress.adminPassword=<redacted>") {
		t.Errorf("expected masked admin password pair, got %q", got)
	}
	if !strings.Contains(got, "storeName=alpha") {
		t.Errorf("expected non-sensitive value to remain, got %q", got)
	}
}
