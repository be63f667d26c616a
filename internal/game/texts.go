package game

// Player-facing replies.
const (
	textCorrect     = "Yes! You got it!"
	textWrongFmt    = "Nope, sorry, its: %s"
	textTimeoutFmt  = "Sorry, you took to long to respond, it is: %s"
	textUnknownFmt  = "I'm not sure what you mean, please try *%s*."
	textNoTargets   = "Sorry, there is nobody for you to guess right now. Try again later."
	textSystemError = "Sorry, something went wrong on my side. Your game has been reset, please try again."
	photoCaption    = "Who is this: "
)
