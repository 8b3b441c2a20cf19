package dialogue

// Reserved step names that follow the collection steps.
const (
	StepSlot          = "slot"
	StepTimeSelection = "timeSelection"
)

// FieldStep is one collection step: it accepts a single free-form answer,
// stores it under Name, and advances. Aliases map quick-reply tokens to
// expanded stored values.
type FieldStep struct {
	Name    string
	Prompt  string
	Aliases map[string]string
}

// Flow is the ordered list of fields collected before slot selection. The
// step order is data, not code: alternate questionnaires (e.g. separate
// rooms/hallways/stairways counts) are alternate Flow values.
type Flow struct {
	Greeting string
	Steps    []FieldStep
}

// InitialStep returns the step assigned to fresh sessions.
func (f Flow) InitialStep() string {
	return f.Steps[0].Name
}

// step returns the field step with the given name, or nil.
func (f Flow) step(name string) *FieldStep {
	for i := range f.Steps {
		if f.Steps[i].Name == name {
			return &f.Steps[i]
		}
	}
	return nil
}

// nextStep returns the step name following the named field step;
// StepSlot after the last one.
func (f Flow) nextStep(name string) string {
	for i := range f.Steps {
		if f.Steps[i].Name == name {
			if i+1 < len(f.Steps) {
				return f.Steps[i+1].Name
			}
			return StepSlot
		}
	}
	return StepSlot
}

// DefaultFlow is the carpet-cleaning questionnaire: name, phone, address,
// email, cleaning areas, pet-urine flag.
func DefaultFlow() Flow {
	return Flow{
		Greeting: "👋 Hello! Welcome to Arlington Steamers Carpet Cleaning.\nWhat is your *name*?",
		Steps: []FieldStep{
			{
				Name:   "name",
				Prompt: "What is your *name*?",
			},
			{
				Name:   "phone",
				Prompt: "📞 Please enter your phone number:",
			},
			{
				Name:   "address",
				Prompt: "🏠 Please enter your address (# street, city)\nExample: 1234 Wayne Drive, San Francisco",
				Aliases: map[string]string{
					"address_arlington":  "Arlington, VA",
					"address_alexandria": "Alexandria, VA",
					"address_fairfax":    "Fairfax, VA",
				},
			},
			{
				Name:   "email",
				Prompt: "📧 Please enter your email:",
			},
			{
				Name:   "areas",
				Prompt: "🧼 How many rooms, stairs, or hallways to clean?\nExample: 5 rooms, 2 stairs, 1 hallway",
				Aliases: map[string]string{
					"areas_small":  "2-3 rooms, 1 hallway",
					"areas_medium": "4-6 rooms, 1-2 hallways, 1 stair",
					"areas_large":  "7+ rooms, 2+ hallways, 2+ stairs",
				},
			},
			{
				Name:   "petIssue",
				Prompt: "🐶 Any *pet urine issue*? (yes/no)",
				Aliases: map[string]string{
					"pet_issue_yes": "Yes",
					"pet_issue_no":  "No",
					"yes":           "Yes",
					"no":            "No",
				},
			},
		},
	}
}
