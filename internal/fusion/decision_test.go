package fusion

import (
	"testing"

	"github.com/ctxengine/perception/pkg/model"
)

func testDictSet() dictionarySet {
	return dictionarySet{
		meeting: []string{"mute", "leave meeting"},
		editor:  []string{"function", "import"},
		reader:  []string{"chapter", "abstract"},
	}
}

func TestDecideMeetingKeywordsAndCallAgree(t *testing.T) {
	tag, corr := decide(true, "please mute yourself", model.AudioCall, testDictSet())
	if tag != model.TagMeeting || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want meeting/1.0", tag, corr)
	}
}

func TestDecideEditorWithSilenceIsFocusedWork(t *testing.T) {
	tag, corr := decide(true, "import os\nfunction main()", model.AudioSilence, testDictSet())
	if tag != model.TagFocusedWork || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want focused_work/1.0", tag, corr)
	}
}

func TestDecideEditorWithAmbientIsFocusedWork(t *testing.T) {
	tag, corr := decide(true, "import os", model.AudioAmbient, testDictSet())
	if tag != model.TagFocusedWork || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want focused_work/1.0", tag, corr)
	}
}

func TestDecideEditorWithMusicIsFocusedWorkPartial(t *testing.T) {
	tag, corr := decide(true, "import os", model.AudioMusic, testDictSet())
	if tag != model.TagFocusedWork || corr != 0.5 {
		t.Errorf("decide() = %v/%v, want focused_work/0.5", tag, corr)
	}
}

func TestDecideReaderWithAmbientIsReading(t *testing.T) {
	tag, corr := decide(true, "chapter one", model.AudioAmbient, testDictSet())
	if tag != model.TagReading || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want reading/1.0", tag, corr)
	}
}

func TestDecideEmptyTextWithMusicIsMusicSession(t *testing.T) {
	tag, corr := decide(false, "", model.AudioMusic, testDictSet())
	if tag != model.TagMusicSession || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want music_session/1.0", tag, corr)
	}
}

func TestDecideEmptyTextWithSilenceIsIdle(t *testing.T) {
	tag, corr := decide(false, "", model.AudioSilence, testDictSet())
	if tag != model.TagIdle || corr != 1.0 {
		t.Errorf("decide() = %v/%v, want idle/1.0", tag, corr)
	}
}

func TestDecideConflictEditorTextWithCallAudio(t *testing.T) {
	tag, corr := decide(true, "import os", model.AudioCall, testDictSet())
	if tag != model.TagMeeting || corr != 0.0 {
		t.Errorf("decide() = %v/%v, want meeting/0.0 (call dominates, correlation conflict)", tag, corr)
	}
}

func TestDecideCallAloneNoTextOpinion(t *testing.T) {
	tag, corr := decide(false, "", model.AudioCall, testDictSet())
	if tag != model.TagMeeting || corr != 0.5 {
		t.Errorf("decide() = %v/%v, want meeting/0.5", tag, corr)
	}
}

func TestDecideOtherwiseIsUnknown(t *testing.T) {
	tag, corr := decide(true, "just some ordinary text", model.AudioSpeech, testDictSet())
	if tag != model.TagUnknown || corr != 0.0 {
		t.Errorf("decide() = %v/%v, want unknown/0.0", tag, corr)
	}
}
