package vision

// System and task prompts for the three collaborators. The analyzer prompt
// pins the response to a strict JSON schema so parsing stays mechanical.

const analyzeSystemPrompt = `You are an assistant that reads a screenshot of a student's screen and detects quiz or exam questions.
Respond with JSON only, no prose, matching this schema:
{
  "has_question": boolean,
  "questions": [
    {
      "type": "single_choice" | "matching" | "grouping" | "fill_in_blank" | "multi_select",
      "question_text": string,
      "options": [
        {"text": string, "is_correct": boolean, "confidence": number, "bounding_box": [ymin, xmin, ymax, xmax]}
      ],
      "reasoning": string,
      "bounding_box": [ymin, xmin, ymax, xmax],
      "next_button_box": [ymin, xmin, ymax, xmax]
    }
  ]
}
Bounding box coordinates are normalized to [0,1]. Omit next_button_box when no next/continue control is visible.
Confidence is your per-option certainty in [0,1]. Mark every correct option for multi-select questions.
If the screenshot contains no question, return {"has_question": false, "questions": []}.`

const analyzeTaskPrompt = `Detect and solve any question visible in this screenshot.`

const oracleSystemPrompt = `You compare two screenshots of the same screen and decide whether the second one shows a materially new question.
Cosmetic differences (cursor position, timers, highlights, partially rendered text, feedback on an already-answered question) are NOT a new question.
Respond with JSON only: {"is_new": boolean, "current_text": string, "reason": string}.
current_text is the question text visible in the second screenshot, or "" if none.`

const verifySystemPrompt = `You check a screenshot of a quiz page.
Respond with JSON only: {"selected": boolean}.
selected is true only if the answer option matching the given text is visually marked as selected (radio filled, checkbox ticked, or highlighted as chosen).`

// transcribeProbePrompt is the relaxed final-attempt probe. It asks for a
// plain transcription with no solving, to distinguish "model refuses to
// answer" from "model cannot see the content" in diagnostics.
const transcribeProbePrompt = `Transcribe all text visible in this screenshot. Do not solve or interpret anything, just transcribe.`
