package feedback

import "voicebutton/beep"

// Beeper plays a synthesized sound per cue. Toasts are ignored.
type Beeper struct{}

func (Beeper) Cue(c Cue) {
	switch c {
	case CueRecordStart:
		beep.PlayStart()
	case CueRecordStop:
		beep.PlayEnd()
	case CueTick:
		beep.PlayTick()
	case CueSuccess:
		beep.PlaySuccess()
	case CueError:
		beep.PlayError()
	}
}

func (Beeper) Toast(Level, string) {}
