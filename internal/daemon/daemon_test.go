package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFile(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "lastwords.pid"))

	pid, err := d.ReadPID()
	if err != nil || pid != 0 {
		t.Fatalf("ReadPID() on missing file = %d, %v; want 0, nil", pid, err)
	}

	if err := d.WritePID(); err != nil {
		t.Fatalf("WritePID() error: %v", err)
	}

	pid, err = d.ReadPID()
	if err != nil {
		t.Fatalf("ReadPID() error: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("ReadPID() = %d, want %d", pid, os.Getpid())
	}

	running, got, err := d.IsRunning()
	if err != nil || !running || got != os.Getpid() {
		t.Errorf("IsRunning() = %v, %d, %v; want true, %d, nil", running, got, err, os.Getpid())
	}

	if err := d.RemovePID(); err != nil {
		t.Fatalf("RemovePID() error: %v", err)
	}
	if err := d.RemovePID(); err != nil {
		t.Errorf("RemovePID() on missing file error: %v", err)
	}
}

func TestReadPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastwords.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path).ReadPID(); err == nil {
		t.Error("ReadPID() error = nil for garbage content")
	}
}

func TestStopNotRunning(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "lastwords.pid"))
	if err := d.Stop(); err == nil {
		t.Error("Stop() error = nil without a PID file")
	}
}

func TestTerminateInvalidPID(t *testing.T) {
	for _, pid := range []int{0, -1} {
		if err := Terminate(pid); err == nil {
			t.Errorf("Terminate(%d) error = nil", pid)
		}
	}
}

func TestAlive(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Error("Alive(self) = false")
	}
	if Alive(0) {
		t.Error("Alive(0) = true")
	}
}
