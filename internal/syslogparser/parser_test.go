package syslogparser

import (
	"testing"

	"github.com/mobystash/mobystash/internal/domain"
)

func TestParseEnvelopeWithHostProgramPid(t *testing.T) {
	msg, fields := Parse("<134>May  1 12:34:56 host1 prog[42]: hello")
	if msg != "hello" {
		t.Fatalf("message = %q, want %q", msg, "hello")
	}
	syslog, ok := fields["syslog"].(domain.Tags)
	if !ok {
		t.Fatalf("fields[\"syslog\"] has unexpected type %T", fields["syslog"])
	}
	want := map[string]any{
		"timestamp":     "May  1 12:34:56",
		"severity_id":   6,
		"severity_name": "info",
		"facility_id":   16,
		"facility_name": "local0",
		"hostname":      "host1",
		"program":       "prog",
		"pid":           42,
	}
	for k, v := range want {
		if syslog[k] != v {
			t.Errorf("syslog[%q] = %v, want %v", k, syslog[k], v)
		}
	}
}

func TestParseNoEnvelope(t *testing.T) {
	msg, fields := Parse("just a plain line")
	if msg != "just a plain line" {
		t.Fatalf("message = %q", msg)
	}
	if len(fields) != 0 {
		t.Fatalf("expected empty fields, got %+v", fields)
	}
}

func TestParseHostOnlyNoProgram(t *testing.T) {
	// content form 2: host followed by a message with no ": " separator
	_, fields := Parse("<14>Jan  2 03:04:05 myhost some longer message here")
	syslog := fields["syslog"].(domain.Tags)
	if syslog["hostname"] != "myhost" {
		t.Errorf("hostname = %v, want myhost", syslog["hostname"])
	}
	if _, ok := syslog["program"]; ok {
		t.Errorf("expected no program field, got %v", syslog["program"])
	}
}

func TestParseProgramPidNoHost(t *testing.T) {
	_, fields := Parse("<14>Jan  2 03:04:05 prog[7]: message body")
	syslog := fields["syslog"].(domain.Tags)
	if syslog["program"] != "prog" {
		t.Errorf("program = %v, want prog", syslog["program"])
	}
	if syslog["pid"] != 7 {
		t.Errorf("pid = %v, want 7", syslog["pid"])
	}
	if _, ok := syslog["hostname"]; ok {
		t.Errorf("expected no hostname, got %v", syslog["hostname"])
	}
}

func TestSeverityFacilityDecomposition(t *testing.T) {
	cases := []struct {
		pri          int
		severityName string
		facilityName string
	}{
		{0, "emerg", "kern"},
		{191, "debug", "local7"},
		{13, "notice", "user"},
	}
	for _, c := range cases {
		msg := "<" + itoa(c.pri) + ">Jan  1 00:00:00 host prog: x"
		_, fields := Parse(msg)
		syslog := fields["syslog"].(domain.Tags)
		if syslog["severity_name"] != c.severityName {
			t.Errorf("pri=%d severity_name = %v, want %s", c.pri, syslog["severity_name"], c.severityName)
		}
		if syslog["facility_name"] != c.facilityName {
			t.Errorf("pri=%d facility_name = %v, want %s", c.pri, syslog["facility_name"], c.facilityName)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
