package dispatch

// Opcode is the closed set of operation codes a Node's OperationCode may
// take, per the fixed-opcode catalog.
type Opcode int

const (
	OpPlayAudio           Opcode = 10
	OpPlayRecording       Opcode = 11
	OpCollectDigits       Opcode = 20
	OpPlayAndCollect      Opcode = 30
	OpPlayMenu            Opcode = 31
	OpRecord              Opcode = 40
	OpReadNumberSequence  Opcode = 50
	OpTransferExtension   Opcode = 100
	OpEnqueueCallCenter   Opcode = 101
	OpCollectMultiDigit   Opcode = 105
	OpBlindTransfer       Opcode = 107
	OpAttendedTransfer    Opcode = 108
	OpHTTPGet             Opcode = 111
	OpHTTPPost            Opcode = 112
	OpConditionalBranch   Opcode = 120
	OpHangup              Opcode = 200
	OpTextToSpeech        Opcode = 330
	OpTextToSpeechInput   Opcode = 331
	OpRecordWithOptions   Opcode = 341
)

// Family names the handler family a given opcode routes to.
type Family string

const (
	FamilyAudio       Family = "audio"
	FamilyInput       Family = "input"
	FamilyRecording   Family = "recording"
	FamilyTransfer    Family = "transfer"
	FamilyAPI         Family = "api"
	FamilyLogic       Family = "logic"
	FamilyTTS         Family = "tts"
	FamilyTermination Family = "termination"
)

// defaultFamilies is the built-in opcode → family mapping. It seeds a new
// Dispatcher and can be overridden per-opcode via RegisterOperation.
var defaultFamilies = map[Opcode]Family{
	OpPlayAudio:          FamilyAudio,
	OpPlayRecording:      FamilyAudio,
	OpCollectDigits:      FamilyInput,
	OpPlayAndCollect:     FamilyAudio,
	OpPlayMenu:           FamilyAudio,
	OpRecord:             FamilyRecording,
	OpReadNumberSequence: FamilyAudio,
	OpTransferExtension:  FamilyTransfer,
	OpEnqueueCallCenter:  FamilyTransfer,
	OpCollectMultiDigit:  FamilyInput,
	OpBlindTransfer:      FamilyTransfer,
	OpAttendedTransfer:   FamilyTransfer,
	OpHTTPGet:            FamilyAPI,
	OpHTTPPost:           FamilyAPI,
	OpConditionalBranch:  FamilyLogic,
	OpHangup:             FamilyTermination,
	OpTextToSpeech:       FamilyTTS,
	OpTextToSpeechInput:  FamilyTTS,
	OpRecordWithOptions:  FamilyRecording,
}

// IsKnownOpcode reports whether code is in the dispatcher's built-in domain.
// Used by flowvalidate for the opcode-closure check independent of any one
// Dispatcher instance's runtime registrations.
func IsKnownOpcode(code int) bool {
	_, ok := defaultFamilies[Opcode(code)]
	return ok
}
