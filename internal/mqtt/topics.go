package mqtt

import "fmt"

func TopicPollResults(prefix string) string {
	return fmt.Sprintf("%s/poll/+/result", prefix)
}

func TopicPollsOpened(prefix string) string {
	return fmt.Sprintf("%s/poll/+/opened", prefix)
}

func TopicConversationReplies(prefix string) string {
	return fmt.Sprintf("%s/conversation/+/reply", prefix)
}

func TopicConversationEvents(prefix string) string {
	return fmt.Sprintf("%s/conversation/+/event", prefix)
}

func TopicPollOpened(prefix, pollID string) string {
	return fmt.Sprintf("%s/poll/%s/opened", prefix, pollID)
}

func TopicPollResult(prefix, pollID string) string {
	return fmt.Sprintf("%s/poll/%s/result", prefix, pollID)
}

func TopicConversationEvent(prefix, userID string) string {
	return fmt.Sprintf("%s/conversation/%s/event", prefix, userID)
}

func TopicConversationReply(prefix, userID string) string {
	return fmt.Sprintf("%s/conversation/%s/reply", prefix, userID)
}
