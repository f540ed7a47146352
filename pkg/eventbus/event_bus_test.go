package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type lapsiSaved struct {
	id int64
}

type paosRotated struct{}

func TestPublishDispatchesBySignature(t *testing.T) {
	publisher := NewEventPublisher(nil)
	var got int64
	publisher.Subscribe(func(e *lapsiSaved) {
		got = e.id
	})
	publisher.Subscribe(func(e *paosRotated) {
		t.Error("wrong handler invoked")
	})
	publisher.Publish(&lapsiSaved{id: 42})
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestPublishLogsWhenUnhandled(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *lapsiSaved) {
		t.Error("should not be called")
	})
	publisher.Publish(&paosRotated{})

	if output := logBuffer.String(); !strings.Contains(output, "no matching subscribers") {
		t.Errorf("expected unhandled warning, got: %q", output)
	}
}

func TestUnsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	handler := func(e *lapsiSaved) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
}

func TestPanicRecovery(t *testing.T) {
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *lapsiSaved) {
		panic("handler exploded")
	})
	publisher.Publish(&lapsiSaved{id: 1})

	if output := logBuffer.String(); !strings.Contains(output, "panicked") {
		t.Errorf("expected panic log, got: %q", output)
	}
}
