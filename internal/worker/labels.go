package worker

import (
	"regexp"
	"strings"

	"github.com/mobystash/mobystash/internal/domain"
)

const labelPrefix = "org.discourse.mobystash."

var disableTruthyRe = regexp.MustCompile(`(?i)^(yes|y|1|on|true|t)$`)

// parsedLabels is the result of scanning a container's labels for the
// mobystash-specific ones.
type parsedLabels struct {
	captureLogs bool
	parseSyslog bool
	filterRegex *regexp.Regexp
	tags        domain.Tags
}

// parseLabels scans labels for the org.discourse.mobystash.* keys and
// builds the derived worker configuration. Unrecognized labels (or
// labels outside the prefix) are ignored.
func parseLabels(labels map[string]string) (parsedLabels, error) {
	pl := parsedLabels{captureLogs: true, tags: domain.Tags{}}

	for key, value := range labels {
		if !strings.HasPrefix(key, labelPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, labelPrefix)

		switch {
		case rest == "disable":
			if disableTruthyRe.MatchString(strings.TrimSpace(value)) {
				pl.captureLogs = false
			}
		case rest == "parse_syslog":
			if disableTruthyRe.MatchString(strings.TrimSpace(value)) {
				pl.parseSyslog = true
			}
		case rest == "filter_regex":
			re, err := regexp.Compile(value)
			if err != nil {
				return parsedLabels{}, err
			}
			pl.filterRegex = re
		case strings.HasPrefix(rest, "tag."):
			path := strings.Split(strings.TrimPrefix(rest, "tag."), ".")
			if len(path) == 0 || path[0] == "" {
				continue
			}
			pl.tags = pl.tags.Set(path, value)
		}
	}

	return pl, nil
}
