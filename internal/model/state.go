package model

// Step is the coarse phase of the chat widget.
type Step string

const (
	StepInitial        Step = "initial"
	StepChatting       Step = "chatting"
	StepOfferPresented Step = "offer_presented"
	StepCompleted      Step = "completed"
	StepError          Step = "error"
)

// ChatState is the externally observable snapshot of the chat widget.
type ChatState struct {
	IsOpen       bool            `json:"isOpen"`
	IsLoading    bool            `json:"isLoading"`
	Conversation *Conversation   `json:"conversation,omitempty"`
	CurrentOffer *RetentionOffer `json:"currentOffer,omitempty"`
	Error        string          `json:"error,omitempty"`
	Step         Step            `json:"step"`
}

// Clone returns a deep copy of the state.
func (s ChatState) Clone() ChatState {
	s.Conversation = s.Conversation.Clone()
	s.CurrentOffer = s.CurrentOffer.Clone()
	return s
}
