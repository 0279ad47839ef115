package fusion

import "github.com/ctxengine/perception/pkg/model"

// decide applies the primary-tag decision table and correlation scoring.
// hasText reports whether the screen summary carries real (non-decayed,
// above-threshold) text for this recompute; screenText is that text when
// hasText is true.
func decide(hasText bool, screenText string, audioClass model.AudioClass, dicts dictionarySet) (model.PrimaryTag, float64) {
	meetingInText := hasText && containsAny(screenText, dicts.meeting)
	editorInText := hasText && containsAny(screenText, dicts.editor)
	readerInText := hasText && containsAny(screenText, dicts.reader)
	isCall := audioClass == model.AudioCall

	switch {
	case meetingInText || isCall:
		switch {
		case meetingInText && isCall:
			return model.TagMeeting, 1.0
		case meetingInText || isCall:
			if conflictsWithMeeting(editorInText, readerInText, isCall, meetingInText) {
				return model.TagMeeting, 0.0
			}
			return model.TagMeeting, 0.5
		}

	case editorInText:
		switch audioClass {
		case model.AudioSilence, model.AudioAmbient:
			return model.TagFocusedWork, 1.0
		case model.AudioMusic:
			return model.TagFocusedWork, 0.5
		default:
			return model.TagFocusedWork, 0.5
		}

	case readerInText:
		switch audioClass {
		case model.AudioSilence, model.AudioAmbient:
			return model.TagReading, 1.0
		default:
			return model.TagReading, 0.5
		}

	case !hasText:
		switch audioClass {
		case model.AudioMusic:
			return model.TagMusicSession, 1.0
		case model.AudioSilence:
			return model.TagIdle, 1.0
		}
	}

	return model.TagUnknown, 0.0
}

// conflictsWithMeeting reports whether the non-triggering modality asserted
// a different, concrete tag than meeting — e.g. editor keywords present
// while audio alone drove the meeting decision via the call class.
func conflictsWithMeeting(editorInText, readerInText, isCall, meetingInText bool) bool {
	if isCall && !meetingInText && (editorInText || readerInText) {
		return true
	}
	if meetingInText && !isCall {
		// Audio had no opinion (not call) — no concrete conflicting tag from
		// audio alone, so this is "one supports, other neutral", not a
		// conflict. Nothing else to check here.
		return false
	}
	return false
}

// dictionarySet is the subset of config.Dictionaries the decision table and
// keyword extraction need, kept narrow so the decision logic doesn't import
// the config package directly.
type dictionarySet struct {
	meeting   []string
	editor    []string
	reader    []string
	stopwords []string
}
