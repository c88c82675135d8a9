package report

import (
	"regexp"
	"strings"
)

// Topics configures MQTT topic generation. Every topic lives under
// <Prefix>/<Name>.
type Topics struct {
	Name   string
	Prefix string
}

// Will topic for the overall manager status.
func (t *Topics) Will() string {
	return t.mk("status")
}

// Snapshot topic for the connection and time snapshot.
func (t *Topics) Snapshot() string {
	return t.mk("snapshot")
}

// Datagram topic for messages received from the datagram peer.
func (t *Topics) Datagram() string {
	return t.mk("datagram")
}

// Config topic for credential updates sent to the manager.
func (t *Topics) Config() string {
	return t.mk("config")
}

func (t *Topics) mk(leaf string) string {
	return mkTopic(t.Prefix, sanitizeTopic(t.Name), leaf)
}

func mkTopic(parts ...string) string {
	return strings.Join(parts, "/")
}

var topicRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeTopic(v string) string {
	return strings.ToLower(topicRe.ReplaceAllString(v, ""))
}
