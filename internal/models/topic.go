// Package models contains data structures for the community feed domain.
package models

import "strings"

// Topic is one of the fixed content categories a post belongs to.
type Topic string

const (
	TopicDicas           Topic = "dicas"
	TopicProgressoFisico Topic = "progressoFisico"
	TopicPosicao         Topic = "posicao"
	TopicTaticas         Topic = "taticas"
	TopicOffTopic        Topic = "offTopic"
	TopicFandom          Topic = "fandom"
	TopicInformacoes     Topic = "informacoes"
)

// DefaultTopic is used when a post is created without one.
const DefaultTopic = TopicDicas

// Topics lists every topic in display order.
var Topics = []Topic{
	TopicDicas,
	TopicProgressoFisico,
	TopicPosicao,
	TopicTaticas,
	TopicOffTopic,
	TopicFandom,
	TopicInformacoes,
}

var topicLabels = map[Topic]string{
	TopicDicas:           "Dicas",
	TopicProgressoFisico: "Progresso Físico",
	TopicPosicao:         "Posição",
	TopicTaticas:         "Táticas",
	TopicOffTopic:        "Off Topic",
	TopicFandom:          "Fandom",
	TopicInformacoes:     "Informações",
}

// Label returns the display label, or the raw value for unknown topics.
func (t Topic) Label() string {
	if l, ok := topicLabels[t]; ok {
		return l
	}
	return string(t)
}

// Valid reports whether t is one of the enumerated topics.
func (t Topic) Valid() bool {
	_, ok := topicLabels[t]
	return ok
}

// ParseTopic parses a topic filter. An empty string means "no filter".
func ParseTopic(raw string) (Topic, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return "", nil
	}
	for _, t := range Topics {
		if strings.EqualFold(string(t), raw) {
			return t, nil
		}
	}
	return "", NewValidationError("Invalid topic: " + raw)
}

// SortMode selects the feed ordering.
type SortMode string

const (
	SortRecent   SortMode = "recent"
	SortPopular  SortMode = "popular"
	SortTrending SortMode = "trending"
)

// ParseSortMode maps a raw query value to a SortMode; anything unrecognized is recent.
func ParseSortMode(raw string) SortMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "popular", "popularity", "top":
		return SortPopular
	case "trending":
		return SortTrending
	default:
		return SortRecent
	}
}
