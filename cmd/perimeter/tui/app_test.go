package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
)

func keyMsg(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestModelCollectComplete(t *testing.T) {
	m := NewModel(context.Background(), Options{Collector: collector.Options{Root: "/srv"}})
	if m.State() != StateCollecting {
		t.Fatalf("expected StateCollecting, got %v", m.State())
	}

	updated, _ := m.Update(CollectCompleteMsg{
		Result: &types.CollectResult{Records: sampleRecords()},
		RunID:  "abc",
	})
	m = updated.(Model)

	if m.State() != StateResults {
		t.Fatalf("expected StateResults, got %v", m.State())
	}
	if len(m.resultModel.Visible()) != 4 {
		t.Errorf("expected 4 visible records, got %d", len(m.resultModel.Visible()))
	}
	if m.resultModel.runID != "abc" || m.resultModel.root != "/srv" {
		t.Errorf("summary not applied: run=%q root=%q", m.resultModel.runID, m.resultModel.root)
	}

	updated, _ = m.Update(keyMsg("w"))
	m = updated.(Model)
	if len(m.resultModel.Visible()) != 1 {
		t.Errorf("key should reach the result model, got %d visible", len(m.resultModel.Visible()))
	}

	_, cmd := m.Update(keyMsg("q"))
	if !isQuit(cmd) {
		t.Error("q should quit from results")
	}
}

func TestModelCollectFailed(t *testing.T) {
	m := NewModel(context.Background(), Options{})

	updated, _ := m.Update(CollectCompleteMsg{Err: errors.New("boom")})
	m = updated.(Model)

	if m.State() != StateCollecting {
		t.Errorf("failed collection should stay on the progress view, got %v", m.State())
	}
	if m.Err() == nil {
		t.Error("expected Err to be set")
	}
}

func TestModelCtrlCWhileCollecting(t *testing.T) {
	m := NewModel(context.Background(), Options{})

	updated, cmd := m.Update(keyMsg("ctrl+c"))
	m = updated.(Model)
	if isQuit(cmd) {
		t.Error("first ctrl+c should cancel the pass, not quit")
	}
	if m.ctx.Err() == nil {
		t.Error("expected the collection context to be cancelled")
	}

	updated, _ = m.Update(CollectCompleteMsg{Err: context.Canceled})
	m = updated.(Model)
	_, cmd = m.Update(keyMsg("ctrl+c"))
	if !isQuit(cmd) {
		t.Error("ctrl+c after the pass finished should quit")
	}
}

func TestModelQuitWhileCollecting(t *testing.T) {
	m := NewModel(context.Background(), Options{})

	updated, cmd := m.Update(keyMsg("q"))
	if !isQuit(cmd) {
		t.Error("q should quit while collecting")
	}
	if updated.(Model).ctx.Err() == nil {
		t.Error("quitting should cancel the pass")
	}
}

func TestModelProgress(t *testing.T) {
	m := NewModel(context.Background(), Options{})

	updated, cmd := m.Update(ProgressMsg{DirsCollected: 3})
	m = updated.(Model)
	if m.collectModel.progress.DirsCollected != 3 {
		t.Errorf("expected DirsCollected 3, got %d", m.collectModel.progress.DirsCollected)
	}
	if cmd == nil {
		t.Error("expected a command to keep listening for progress")
	}
}

func TestStartCollect(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	var finished *types.CollectResult
	m := NewModel(context.Background(), Options{
		Collector: collector.Options{Root: root},
		Finish: func(result *types.CollectResult, interrupted bool) (string, []string) {
			finished = result
			if interrupted {
				t.Error("pass should not be interrupted")
			}
			return "run-1", []string{"note"}
		},
	})

	msg, ok := m.startCollect()().(CollectCompleteMsg)
	if !ok {
		t.Fatal("expected CollectCompleteMsg")
	}
	if msg.Err != nil {
		t.Fatalf("collect failed: %v", msg.Err)
	}
	if len(msg.Result.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(msg.Result.Records))
	}
	if finished != msg.Result {
		t.Error("Finish should receive the collect result")
	}
	if msg.RunID != "run-1" || len(msg.Warnings) != 1 {
		t.Errorf("finish output not carried: %+v", msg)
	}

	// The progress channel is closed once the pass returns.
	if got := m.listenForProgress()(); got != nil {
		if _, isProgress := got.(ProgressMsg); !isProgress {
			t.Errorf("unexpected message %T", got)
		}
	}
}

func TestStartCollectCancelled(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewModel(ctx, Options{Collector: collector.Options{Root: root}})
	msg := m.startCollect()().(CollectCompleteMsg)

	if msg.Err != nil {
		t.Fatalf("a cancelled pass should return partial results, got %v", msg.Err)
	}
	if !msg.Interrupted {
		t.Error("expected Interrupted")
	}
}
