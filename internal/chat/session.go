package chat

import (
	"time"

	"github.com/google/uuid"

	"tubeqa/internal/llm"
)

// Session is one conversation about one video. All state is in-process;
// sessions disappear on restart and after the idle TTL.
type Session struct {
	ID         string
	VideoID    string
	Turns      []llm.Turn
	CreatedAt  time.Time
	LastActive time.Time
}

func newSession(videoID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		CreatedAt:  now,
		LastActive: now,
	}
}

// append records a question/answer pair and enforces the history bound:
// at most maxTurns pairs are kept, oldest dropped first.
func (s *Session) append(question, answer string, maxTurns int) {
	s.Turns = append(s.Turns,
		llm.Turn{Role: llm.RoleUser, Content: question},
		llm.Turn{Role: llm.RoleAssistant, Content: answer},
	)
	if maxTurns > 0 && len(s.Turns) > 2*maxTurns {
		s.Turns = s.Turns[len(s.Turns)-2*maxTurns:]
	}
	s.LastActive = time.Now().UTC()
}
