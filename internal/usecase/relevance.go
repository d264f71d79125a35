package usecase

import (
	"strings"

	"github.com/samber/lo"

	"BlogDigest/internal/domain"
)

// topicKeywords lowercases the topics and splits multi-word entries, so
// "distributed systems" matches a post mentioning either word.
func topicKeywords(topics []string) []string {
	var keywords []string
	for _, topic := range topics {
		keywords = append(keywords, strings.Fields(strings.ToLower(topic))...)
	}
	return lo.Uniq(keywords)
}

// FilterTopics keeps posts whose title or description contains any keyword,
// case-insensitively. No topics means every post is kept.
func FilterTopics(posts []domain.Post, topics []string) []domain.Post {
	keywords := topicKeywords(topics)
	if len(keywords) == 0 {
		return posts
	}
	return lo.Filter(posts, func(p domain.Post, _ int) bool {
		text := strings.ToLower(p.Title)
		if p.SummaryRaw != nil {
			text += "\n" + strings.ToLower(*p.SummaryRaw)
		}
		return lo.SomeBy(keywords, func(k string) bool { return strings.Contains(text, k) })
	})
}
