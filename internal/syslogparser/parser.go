// Package syslogparser optionally extracts RFC3164-ish syslog fields
// from a log message.
package syslogparser

import (
	"regexp"
	"strconv"

	"github.com/mobystash/mobystash/internal/domain"
)

// pri/timestamp/content envelope, e.g. "<134>May  1 12:34:56 host1 prog[42]: hello"
var envelopeRe = regexp.MustCompile(`^<(\d+)>(\w{3} [ 0-9]{2} [0-9:]{8}) (.*)$`)

// content patterns, tried in order. Explicit capture group indexing
// since Go regexps have no named-group convenience across these forms.
var (
	contentHostProgPid = regexp.MustCompile(`^([a-zA-Z0-9._-]*[^:]) (\S+?)(\[(\d+)\])?: (.*)$`)
	contentHostOnly    = regexp.MustCompile(`^([a-zA-Z0-9._-]+) (\S+[^:] .*)$`)
	contentProgPid     = regexp.MustCompile(`^(\S+?)(\[(\d+)\])?: (.*)$`)
)

var severityNames = [...]string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

var facilityNames = [...]string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp",
	"reserved12", "reserved13", "reserved14", "reserved15",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

// Parse attempts to extract syslog fields from message. If message does
// not match the `<pri>timestamp content` envelope, it returns the
// original message unchanged and an empty fields map.
func Parse(message string) (string, domain.Tags) {
	m := envelopeRe.FindStringSubmatch(message)
	if m == nil {
		return message, domain.Tags{}
	}

	pri, err := strconv.Atoi(m[1])
	if err != nil {
		return message, domain.Tags{}
	}
	timestamp := m[2]
	content := m[3]

	severityId := pri % 8
	facilityId := pri / 8

	fields := domain.Tags{
		"timestamp":     timestamp,
		"severity_id":   severityId,
		"severity_name": severityNames[severityId],
	}
	if facilityId >= 0 && facilityId < len(facilityNames) {
		fields["facility_id"] = facilityId
		fields["facility_name"] = facilityNames[facilityId]
	} else {
		fields["facility_id"] = facilityId
	}

	hostname, program, pid, msg := parseContent(content)
	if hostname != "" {
		fields["hostname"] = hostname
	}
	if program != "" {
		fields["program"] = program
	}
	if pid != nil {
		fields["pid"] = *pid
	}

	return msg, domain.Tags{"syslog": fields}
}

func parseContent(content string) (hostname, program string, pid *int, message string) {
	if m := contentHostProgPid.FindStringSubmatch(content); m != nil {
		hostname = m[1]
		program = m[2]
		if m[4] != "" {
			if p, err := strconv.Atoi(m[4]); err == nil {
				pid = &p
			}
		}
		message = m[5]
		return
	}
	if m := contentHostOnly.FindStringSubmatch(content); m != nil {
		hostname = m[1]
		message = m[2]
		return
	}
	if m := contentProgPid.FindStringSubmatch(content); m != nil {
		program = m[1]
		if m[3] != "" {
			if p, err := strconv.Atoi(m[3]); err == nil {
				pid = &p
			}
		}
		message = m[4]
		return
	}
	message = content
	return
}
