// Package eventbuilder assembles the structured event a worker hands to
// the sink and computes its document id.
package eventbuilder

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/mobystash/mobystash/internal/domain"
	"github.com/spaolacci/murmur3"
)

// Built is the result of Build: the fully assembled event (with
// @metadata attached) and the document id that was computed from the
// pre-@metadata serialization.
type Built struct {
	Event      domain.Tags
	DocumentID string
}

// Build deep-merges, in order, the message/timestamp/stream skeleton,
// syslog fields, sampling metadata, and container tags, computes the
// document id from the canonical JSON serialization of that merged
// event, and returns the event with @metadata attached.
func Build(message, timestamp, stream string, containerTags, syslogFields, sampleMeta domain.Tags) (Built, error) {
	event := domain.Tags{
		"message":    message,
		"@timestamp": timestamp,
		"moby": domain.Tags{
			"stream": stream,
		},
	}
	event = domain.DeepMerge(event, syslogFields)
	event = domain.DeepMerge(event, sampleMeta)
	event = domain.DeepMerge(event, containerTags)

	docID, err := DocumentID(event)
	if err != nil {
		return Built{}, err
	}

	withMeta := domain.DeepMerge(event, domain.Tags{
		"@metadata": domain.Tags{
			"document_id": docID,
			"event_type":  "moby",
		},
	})

	return Built{Event: withMeta, DocumentID: docID}, nil
}

// DocumentID computes the base64 (unpadded) encoding of the 128-bit
// MurmurHash3 of event's canonical JSON serialization. It produces the
// unpadded encoding directly rather than stripping the two trailing "="
// a standard encoding of a 16-byte value always has.
func DocumentID(event domain.Tags) (string, error) {
	canonical, err := canonicalJSON(event)
	if err != nil {
		return "", err
	}
	hi, lo := murmur3.Sum128(canonical)
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], hi)
	binary.BigEndian.PutUint64(buf[8:16], lo)
	return base64.RawStdEncoding.EncodeToString(buf[:]), nil
}

// canonicalJSON serializes t deterministically. encoding/json already
// sorts map keys lexicographically when marshaling, which is what makes
// this reproducible across runs and processes, rather than depending on
// merge-insertion order (which a Go map cannot preserve in the first
// place).
func canonicalJSON(t domain.Tags) ([]byte, error) {
	return json.Marshal(t)
}
