package coach

import (
	"fmt"
	"strings"

	"github.com/harunnryd/mockview/pkg/interview"
)

func followUpSystemPrompt() string {
	return strings.TrimSpace(`
You are a professional job interviewer running a spoken mock interview.
Reply with one short, natural utterance that will be read aloud.
Output ONLY valid JSON with no extra text, in this format:
{"followUpQuestion": ""}
`)
}

func followUpUserPrompt(req interview.FollowUpRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Job role: %s\n", req.JobRole)
	fmt.Fprintf(&sb, "Your previous utterance: %s\n", req.PreviousQuestion)
	fmt.Fprintf(&sb, "Candidate's answer: %s\n\n", req.UserAnswer)
	if req.Phase == interview.PhaseClosing {
		sb.WriteString(`All interview questions have been asked. The candidate may ask about the interview process.
Answer their question briefly and politely, then invite further questions.
If the candidate has nothing more to ask or wants to finish, thank them and end with "Goodbye".
Do not ask new interview questions.`)
	} else {
		sb.WriteString(`Briefly acknowledge the answer, then ask exactly one relevant follow-up or next interview question for this role.
Vary between behavioural and role-specific technical questions. Do not say goodbye.`)
	}
	return sb.String()
}

func assessSystemPrompt(rubric Rubric) string {
	return strings.TrimSpace(`
You are an AI-powered interview performance assessor. Your role is to evaluate a candidate's performance in a mock interview and provide constructive feedback.

Use this rubric as a guide to construct the assessment.
` + rubric.Render() + `

First, based on the overall score, provide a one-word summary of the performance (e.g., Excellent, Good, Average, Needs Improvement).

IMPORTANT: Keep all text-based assessments concise and use bullet points. For communication, technical, and overall performance, provide 2-3 brief bullet points. For areas for improvement, provide a list of bullet points.

Provide scores from 0-10 for communication, technical, and overall performance.

Output ONLY valid JSON with no extra text, in this format:
{
  "assessment": {
    "summary": "",
    "communicationSkills": "",
    "technicalKnowledge": "",
    "overallPerformance": "",
    "areasForImprovement": [""],
    "scores": {"communication": 0, "technical": 0, "overall": 0}
  }
}
`)
}

func assessUserPrompt(req AssessRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Here's the job role the candidate was interviewing for: %s\n\n", req.Role)
	sb.WriteString("Here are the questions and answers from the interview:\n")
	for _, ex := range req.Exchanges {
		fmt.Fprintf(&sb, "Question: %s\nAnswer: %s\n", ex.Question, ex.Answer)
	}
	return sb.String()
}

func feedbackSystemPrompt() string {
	return strings.TrimSpace(`
You are an expert career coach providing personalized feedback on mock job interviews.

Based on the interview transcript, selected role, and AI performance assessment, provide actionable feedback to the user.

IMPORTANT: Structure the feedback exactly as follows, keeping it concise and using markdown for formatting.

Start with a brief, encouraging opening sentence.

Then, provide 2-3 key feedback points. For each point, use this format:
### **[Feedback Area Title]**
A 1-2 sentence summary of the feedback.
*   **Best Practice:** A short, actionable tip.

End with a short, motivational closing sentence.

Output ONLY valid JSON with no extra text, in this format:
{"personalizedFeedback": ""}
`)
}

func feedbackUserPrompt(req FeedbackRequest, assessment string) string {
	return "Interview Transcript:\n" + req.Transcript + "\n\n" +
		"Selected Role: " + req.Role + "\n\n" +
		"Performance Assessment: " + assessment
}
