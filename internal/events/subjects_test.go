package events

import (
	"strings"
	"testing"
)

func TestOutboundSubjectsAreCapturedByStream(t *testing.T) {
	subjects := []string{
		SubjectDealCreated("d1"),
		SubjectDealStageMoved("d1"),
		SubjectTransitionDenied("d1"),
		SubjectDealSLAChanged("d1"),
		SubjectLeadCreated("l1"),
		SubjectLeadBucketChanged("l1"),
		SubjectPriorityConfigUpdated,
		SubjectSLASweepCompleted,
	}
	for _, s := range subjects {
		if !captured(s) {
			t.Errorf("subject %s is not captured by stream %s", s, StreamName)
		}
	}
}

func TestInboundSubjectsStayOutOfStream(t *testing.T) {
	if captured(SubjectInboundLeadActivity("l1")) {
		t.Error("inbound activity should not be persisted in the outbound stream")
	}
	if !matches(SubjectLeadActivity, SubjectInboundLeadActivity("l1")) {
		t.Error("inbound builder does not match the subscription pattern")
	}
}

func captured(subject string) bool {
	for _, pattern := range StreamSubjects {
		if matches(pattern, subject) {
			return true
		}
	}
	return false
}

// matches implements NATS token wildcards: * for one token, > for the rest.
func matches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, tok := range pt {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
