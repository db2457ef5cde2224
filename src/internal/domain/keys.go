package domain

// Object-storage key scheme. Keys are deterministic per session so the
// reaper can delete a session's artifacts without tracking keys separately.

func SampleVideoKey(sessionID string) string {
	return "samples/" + sessionID + "_sample.mp4"
}

func CharacterImageKey(sessionID string) string {
	return "characters/" + sessionID + "_character.jpg"
}

func AudioKey(sessionID string) string {
	return "audio/" + sessionID + "_audio.mp3"
}

func GeneratedVideoKey(sessionID string) string {
	return "generated/" + sessionID + ".mp4"
}

func NarrationKey(sessionID string) string {
	return "generated/" + sessionID + "_narration.mp3"
}

// ArtifactKeys lists the storage keys this session may have written.
func (s *Session) ArtifactKeys() []string {
	keys := []string{SampleVideoKey(s.SessionID)}
	if s.CharacterImageURL != "" {
		keys = append(keys, CharacterImageKey(s.SessionID))
	}
	if s.AudioURL != "" {
		keys = append(keys, AudioKey(s.SessionID))
	}
	if s.VideoURL != "" {
		keys = append(keys, GeneratedVideoKey(s.SessionID), NarrationKey(s.SessionID))
	}
	return keys
}
