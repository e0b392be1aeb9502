package logs

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tgifai/skillhunt/internal/consts"
)

func TestLineFormatter_IncludesTaskAndLogID(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&lineFormatter{})
	l := &defaultLogger{log: log}

	ctx := l.SetLogID(context.Background(), "abc-123")
	ctx = context.WithValue(ctx, consts.CtxKeyTask, "learn")

	l.CtxInfo(ctx, "found %d skills", 3)

	out := buf.String()
	if !strings.HasPrefix(out, "INFO ") {
		t.Errorf("expected INFO prefix, got %q", out)
	}
	for _, want := range []string{"abc-123", "[learn]", "found 3 skills"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestWithTask(t *testing.T) {
	ctx := WithTask(context.Background(), "health")
	if got := TaskFrom(ctx); got != "health" {
		t.Errorf("TaskFrom = %q, want health", got)
	}
	if GetLogID(ctx) == "" {
		t.Error("expected a log id to be attached")
	}
	if TaskFrom(context.Background()) != "" {
		t.Error("expected empty task for bare context")
	}
}

func TestBuildWriter(t *testing.T) {
	if _, err := buildWriter(Options{}, "syslog"); err == nil {
		t.Fatal("expected error for unsupported output")
	}
	if _, err := buildWriter(Options{}, "file"); err == nil {
		t.Fatal("expected error when file output has no path")
	}
	if _, err := buildWriter(Options{File: filepath.Join(t.TempDir(), "logs", "a.log")}, "both"); err != nil {
		t.Fatalf("both output: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"WARNING": logrus.WarnLevel,
		" error ": logrus.ErrorLevel,
		"":        logrus.InfoLevel,
		"bogus":   logrus.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONOutputCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.AddHook(ctxFieldsHook{})
	l := &defaultLogger{log: log}

	ctx := WithTask(context.Background(), "qa")
	l.CtxWarn(ctx, "skill %s is broken", "weather")
	l.Info("no context")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	for _, want := range []string{`"task":"qa"`, `"log_id":"` + GetLogID(ctx) + `"`, "weather is broken"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("expected %q in %q", want, lines[0])
		}
	}
	if strings.Contains(lines[1], `"task"`) {
		t.Errorf("unexpected task field in %q", lines[1])
	}
}
