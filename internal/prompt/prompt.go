// Package prompt renders structured case data and discussion history into the
// system/user prompt pairs consumed by the provider adapters. Every builder
// is a pure function: identical inputs produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"
)

// Pair is one rendered prompt: a system instruction and a user message.
type Pair struct {
	System string
	User   string
}

// Case carries the patient fields rendered into prompts. Empty fields are
// omitted entirely, never rendered as blank placeholders.
type Case struct {
	Name               string
	Gender             string
	Age                int
	MedicalHistory     string
	Allergies          string
	CurrentMedications string
	ChiefComplaint     string
	Symptoms           string
}

// HistoryEntry is one line of discussion history, already denormalized: the
// doctor name is the name recorded at write time.
type HistoryEntry struct {
	SenderType string // patient, doctor, system
	DoctorName string
	Content    string
}

// RosterEntry names one candidate in a vote prompt.
type RosterEntry struct {
	ID   string
	Name string
}

// FormatCase renders the known case fields in fixed order.
func FormatCase(c Case) string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "Name: "+c.Name)
	}
	if c.Gender != "" {
		parts = append(parts, "Gender: "+c.Gender)
	}
	if c.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", c.Age))
	}
	if c.MedicalHistory != "" {
		parts = append(parts, "Medical History: "+c.MedicalHistory)
	}
	if c.Allergies != "" {
		parts = append(parts, "Allergies: "+c.Allergies)
	}
	if c.CurrentMedications != "" {
		parts = append(parts, "Current Medications: "+c.CurrentMedications)
	}
	if c.ChiefComplaint != "" {
		parts = append(parts, "Chief Complaint: "+c.ChiefComplaint)
	}
	if c.Symptoms != "" {
		parts = append(parts, "Main Symptoms: "+c.Symptoms)
	}
	return strings.Join(parts, "\n")
}

// formatHistory serializes the discussion log. Entries authored by
// currentSpeaker are labelled as their own prior remark so the model
// recognizes self-authored context.
func formatHistory(history []HistoryEntry, c Case, currentSpeaker string) string {
	var lines []string
	for _, m := range history {
		switch m.SenderType {
		case "doctor":
			label := m.DoctorName
			if m.DoctorName == currentSpeaker {
				label = m.DoctorName + " (your previous response)"
			}
			lines = append(lines, label+": "+m.Content)
		case "patient":
			name := c.Name
			if name == "" {
				name = "Anonymous"
			}
			lines = append(lines, "Patient ("+name+"): "+m.Content)
		}
	}
	if len(lines) == 0 {
		return "(No history yet)"
	}
	return strings.Join(lines, "\n")
}

// Discussion builds the prompt for one doctor's discussion turn.
func Discussion(rolePrompt string, c Case, history []HistoryEntry, speakerName string) Pair {
	user := "[Patient Medical Record]\n" + FormatCase(c) + "\n\n" +
		"[Discussion History]\n" + formatHistory(history, c, speakerName) + "\n\n" +
		"Please provide your professional analysis and recommendations based on the above information."
	return Pair{System: rolePrompt, User: user}
}

const voteInstruction = "You are now in the evaluation phase. Based on the discussion above, identify the doctor whose " +
	"assessment this round was least accurate (you may choose yourself). " +
	"Output STRICTLY a single JSON object with no other text, no markdown fences, and no explanation. " +
	"The JSON format is: {\"targetDoctorId\":\"<doctor id>\",\"reason\":\"<brief reason>\"}\n" +
	"The targetDoctorId MUST be one of the ids in the doctor list below."

// Vote builds the peer-evaluation prompt for one voter.
func Vote(rolePrompt string, c Case, history []HistoryEntry, roster []RosterEntry, voterName string) Pair {
	var listing []string
	for _, d := range roster {
		listing = append(listing, fmt.Sprintf("- %s (ID: %s)", d.Name, d.ID))
	}

	user := "[Patient Medical Record]\n" + FormatCase(c) + "\n\n" +
		"[Discussion and Patient Follow-ups]\n" + formatHistory(history, c, voterName) + "\n\n" +
		"[Doctor List]\n" + strings.Join(listing, "\n") + "\n\n" +
		"You are " + voterName + ". " + voteInstruction

	system := rolePrompt + "\n\nIMPORTANT: Perform the evaluation only and output the result. " +
		"Output STRICTLY one JSON object of the form {\"targetDoctorId\":\"<doctor id>\",\"reason\":\"<brief reason>\"}. " +
		"Do not output explanations, Markdown, or anything else."

	return Pair{System: system, User: user}
}

// FinalSummary builds the concluding report prompt for the chosen summarizer.
func FinalSummary(rolePrompt string, c Case, history []HistoryEntry, summarizerName string) Pair {
	user := "[Patient Medical Record]\n" + FormatCase(c) + "\n\n" +
		"[Full Consultation Transcript]\n" + formatHistory(history, c, summarizerName) + "\n\n" +
		"As the concluding clinician, produce the final report. Include, in this order:\n" +
		"1) Primary diagnosis and grading (if uncertain, the most likely diagnosis with probability);\n" +
		"2) Supporting evidence (itemized);\n" +
		"3) Differential diagnosis (ranked by likelihood);\n" +
		"4) Recommended further workup and the reasons;\n" +
		"5) Treatment and disposition advice (drug dosages where applicable);\n" +
		"6) Follow-up and review timing;\n" +
		"7) Patient education and risk notice."
	return Pair{System: rolePrompt, User: user}
}

const triageSystem = `You are an experienced emergency triage physician. Your task is to:
1. Assess the patient's symptoms and provide preliminary triage recommendations
2. Assign 1-3 relevant specialists based on symptoms and patient profile

IMPORTANT: Respond in the SAME LANGUAGE as the patient's input. If they write in English, respond in English. If they write in Chinese, respond in Chinese.

Available specialist IDs you can assign:
- cardiologist (heart, blood pressure, chest pain)
- pulmonologist (cough, breathing, lungs)
- neurologist (headache, dizziness, nerves)
- gastroenterologist (stomach, digestion, liver)
- endocrinologist (diabetes, thyroid, hormones)
- nephrologist (kidney, urinary)
- general_surgeon (surgery, acute abdomen)
- orthopedist (bones, joints, fractures)
- pediatrician (children under 18)
- gynecologist (women's health, pregnancy)
- dermatologist (skin issues)
- oncologist (cancer concerns)

RULES for doctor assignment:
- Assign 1-3 specialists most relevant to the symptoms
- If patient is a child (age < 18), ALWAYS include "pediatrician"
- If patient is female with reproductive concerns, include "gynecologist"

Output ONLY a JSON object with NO additional text, prose, or markdown fences:
{
  "severity": 1-5,
  "department": "Primary department name",
  "is_emergency": true/false,
  "emergency_advice": "Brief advice if emergency",
  "risks": ["Risk 1", "Risk 2"],
  "summary": "One-sentence conclusion",
  "assigned_doctors": ["doctor_id_1", "doctor_id_2"]
}`

// Triage builds the one-shot classification prompt. The profile is optional.
func Triage(complaint string, c *Case) Pair {
	var profile string
	if c != nil {
		if rendered := FormatCase(*c); rendered != "" {
			profile = "Patient Profile:\n" + rendered + "\n\n"
		}
	}
	user := profile + "Patient's chief complaint:\n" + complaint + "\n\n" +
		"Please perform professional triage assessment, assign appropriate specialists, and return the result in JSON format."
	return Pair{System: triageSystem, User: user}
}

const emergencySystem = `You are a senior emergency-response physician. The patient's situation is extremely urgent (triage level 5) and you must immediately provide structured first-aid guidance based on the chief complaint.

Guidance requirements:
1. Concise, imperative language.
2. Steps ordered by execution priority.
3. Emphasize the critical actions (maintain breathing, stop bleeding, hold position).
4. Include explicit prohibitions (for example: do not move the injured person).

Output STRICTLY a single JSON object with no other text, prose, or markdown fences, in this format:
{
  "title": "Guidance title",
  "steps": [
    {"index": 1, "action": "Action", "detail": "Details / cautions"},
    {"index": 2, "action": "...", "detail": "..."}
  ],
  "warnings": ["Warning 1", "Warning 2"],
  "prohibited": ["Prohibition 1"]
}`

// Emergency builds the first-aid guidance prompt for level-5 triage results.
func Emergency(complaint, triageSummary string) Pair {
	user := "Patient's chief complaint:\n" + complaint + "\n\n" +
		"Preliminary triage conclusion:\n" + triageSummary + "\n\n" +
		"Generate the structured first-aid steps JSON now."
	return Pair{System: emergencySystem, User: user}
}
