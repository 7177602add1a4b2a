package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// goldenRules is shared receptionist policy appended to classification prompts.
const goldenRules = `
Golden Rules for the assistant:
1. Default to earliest available with any provider unless they request a specific one.
2. One question at a time — never overwhelm.
3. Confirm before any action — wait for explicit "yes".
4. Be extra patient with elderly callers — speak clearly, offer to repeat.
5. Stay in their language — don't switch unless they do.
6. Check registration status first — before collecting new user info.
7. Keep it human — you're a helpful receptionist, not a robot.`

// agenticFlowBase guides registration-related calls so they stay consistent
// with booking policy.
const agenticFlowBase = `
You are supporting a scheduling receptionist agent. Follow these rules from booking policy:

**Golden Rules**
- One question at a time — never overwhelm.
- Confirm before any action — wait for explicit "yes".
- Be extra patient with elderly callers — speak clearly, offer to repeat.
- Stay in the caller's language — don't switch unless they do.
- Keep it human — you're a helpful receptionist, not a robot.

**New user registration**
- Collect ONE item at a time. Confirm each before moving on.
- Full legal name: if the user says "it is X" or "it would be X", the name to store is X only.
- Date of birth: accept spoken or numeric; we store YYYY-MM-DD; when confirming, read it out in words (e.g. March 15th, 1999).
- Gender: we accept only male, female, or other (and equivalents like man, woman); the system normalizes.
- Phone: accept any format; we normalize and store with country code (E.164); confirm by reading back.
- Email: optional; if they decline, that's fine — we skip it.
- After collecting all fields, confirm the full summary in words, then ask "Is everything correct?" before registering.

**Name spelling**
- Names can sound similar (Dawn/Don, John/Jon, Smith/Smyth, Lee/Li/Leigh). If unclear or search fails, ask them to spell and confirm letter by letter.

**Corrections during confirmation**
- When the user is on final confirmation ("Is everything correct?") and they give a correction, the system parses which field and new value, updates the collected data, and re-shows the summary.

**Transfer to staff**
- Transfer when: user asks for a human, is frustrated after attempts, has a medical/billing question, registration error after retry, or says no to confirmation without giving a correction.
`

// IntentLabels are the eleven intents the classifier may return.
var IntentLabels = []string{
	"no_request",
	"emergency",
	"invalid_business",
	"unsupported",
	"org_info",
	"register",
	"book",
	"reschedule",
	"cancel",
	"get_appointments",
	"frustration",
}

func intentClassifierSystem() string {
	return fmt.Sprintf(`You are an intent classifier for a scheduling receptionist call. Use the conversation context and previous intent to interpret the user's last message. Reply with exactly one word from this list: %s.

Context rules:
- If the assistant recently asked for date of birth or "Are you [name]?" and the user's message looks like a date (e.g. "March 15 1999", "3/15/1999") or yes/no, do NOT use invalid_business. The user is answering the assistant's question; use unsupported so the flow can handle it, or treat as in-context.
- When current_step indicates the user is in a reschedule or cancel flow (e.g. reschedule_choose, reschedule_offer_slots, reschedule_confirm, cancel_choose, cancel_confirm): treat option/slot numbers ("1", "2", "option 2"), "yes"/"confirm"/"sure", and date/time phrases (e.g. "February 5 at 3pm") as continuing that flow — reply with reschedule or cancel to match the current flow. Only use a different intent if the user clearly asks to change what they are doing (e.g. "actually I want to cancel instead", "never mind, cancel it").
- When current_step indicates the user is in a booking flow (e.g. booking_check, booking_offer_slots, booking_confirm): treat option/slot numbers ("1", "2"), "yes"/"confirm"/"sure", and date/time phrases (e.g. "February 5 at 3pm", "10 am") as continuing that flow — reply with book. Only use a different intent if the user clearly asks for something else (e.g. "cancel", "can I see my appointments").
- When current_step indicates the user is in a registration flow (e.g. registration_name, registration_dob, registration_confirm_all): treat names, dates (DOB), "yes"/"confirm"/"sure", gender, phone, email as continuing that flow — reply with register. Only use a different intent if the user clearly asks for something else (e.g. "cancel", "never mind", "I want to book instead").
- **Confirmation stage (all flows)**: During confirmation (flow step "confirm" or steps booking_confirm, registration_confirm_all, reschedule_confirm, cancel_confirm), treat "yes"/"confirm"/"sure"/"correct" as continuing the current flow. If the user clearly expresses a different intent (e.g. "actually cancel it", "never mind", "I want to book instead"), classify that new intent so the system can switch flows — do not force continue.
- invalid_business: ONLY when the user is clearly not calling for organization business (wrong number, sales call, etc.). Do NOT use for dates, yes/no, or short replies that are answers to the assistant's question.
- no_request: ONLY when the user explicitly says they are done or have nothing else — e.g. "no", "nothing else", "that's all", "goodbye", "no thanks", "that's it", "I'm done", "all done", "nothing more". Do NOT use no_request for: "ok", "yes", "sure", or short replies that could mean they want to continue. When in doubt, do NOT use no_request.
- emergency: user mentions emergency, 911, life-threatening or anything that requires immediate attention such as chest pain, stroke, broken bone, and more.
- unsupported: request we cannot handle, or in-context reply (e.g. DOB/yes-no) that is not a scheduling request. Try to avoid this option as much as possible and find the best option for the user instead.
- org_info: user asks about hours, location, or general organization information.
- register: user wants to register as a new user.
- book: user wants to book/schedule an appointment.
- reschedule: user wants to change an existing appointment.
- cancel: user wants to cancel an appointment.
- get_appointments: user wants to know their upcoming appointments (e.g. "what are my appointments?", "when is my next appointment?").
- frustration: user is frustrated or asks for a human/agent.
%s`, strings.Join(IntentLabels, ", "), goldenRules)
}

const matchAppointmentSystem = `You match the user's message to one of the listed appointments. All appointment times are in the organization's local timezone (already converted for you).

You are given:
1. The user's message (e.g. "cancel the feb 13th 9 am appointment", "the one on Friday at 9", "reschedule option 2").
2. A list of appointments, each with: id (number), providerName, and dateTime (human-readable in organization timezone).

Reply with ONLY the appointment id (the number) that best matches what the user is referring to. If the user said an option number (1, 2, etc.), map that to the id of the appointment at that position (1 = first in list). If the user described a date and/or time, pick the appointment whose dateTime matches that description. If no appointment matches or the message is unclear, reply with exactly: NONE

Do not include any other text, explanation, or punctuation. Only the id number or NONE.`

const parseDateTimeSystem = `You parse the user's spoken date and/or time into a structured result for an appointment system.

You are given:
- Current time in UTC (ISO 8601)
- Timezone (IANA, e.g. America/New_York): interpret all user times in this zone and convert to UTC for moments

Reply with exactly one JSON object, no other text. Use one of these shapes:

1. For a relative week (availability): {"kind":"range","when":"this_week"} or {"kind":"range","when":"next_week"}
2. For a date range (availability): {"kind":"range","fromDate":"YYYY-MM-DD","toDate":"YYYY-MM-DD"}
3. For a single moment (specific date and time): {"kind":"moment","isoUtc":"YYYY-MM-DDTHH:mm:ss.sssZ"} (must be valid ISO 8601 in UTC)

Rules:
- "this week", "next week" -> kind "range", when "this_week" or "next_week"
- "tomorrow", "Monday", "February 10th" (no time) -> kind "range", fromDate and toDate both that date (YYYY-MM-DD in the given timezone)
- "4:30 AM", "tomorrow at 6:30", "February 3rd at 7:30 AM", "6th February 1:30 am" -> kind "moment", isoUtc = that instant in UTC. Day-of-month (e.g. 6th) applies to the month stated.
- Interpret times in the given timezone. Use current date/year when not specified.
- **Conversation context**: When "Conversation context" is provided below (e.g. the assistant just offered slots on a specific date like "On February 5th we have 10am, 1pm"), treat the user's reply as referring to that context. If the user says only a time (e.g. "10 am", "the first one") they mean that time on the date the assistant just offered. Return kind "moment" with that date and time in UTC.
- If the user says something like "Let's go for the first availability" or "Just get me booked into any of the slots possible", return the first availability for the user.
- If the user is asking for a specific date or time, try to find the best option for the user instead of using the INVALID option.
- If the utterance is not a clear date or time, reply: INVALID
`

const dobParseSystem = `You extract a single date of birth from the caller's utterance. Reply with ONLY the date in YYYY-MM-DD format (e.g. 1999-03-15). No other text.

Rules:
- Interpret speech/recognition variations: "March 15th 1999", "3/15/1999", "15 March 1999", "March 15, 1999" → 1999-03-15.
- Two-digit year: "3/15/99" → 1999-03-15 (assume 19xx for 00-99).
- If the utterance contains no clear date, or is ambiguous, reply with exactly: INVALID
- Output exactly 10 characters for a valid date: YYYY-MM-DD. Or the word INVALID.`

const confirmYesNoSystem = agenticFlowBase + `
You determine if the user is confirming "yes" to the assistant's question. The assistant asked a yes/no question (e.g. "Is that the best number to reach you?"). Reply with exactly one word: yes or no.
- yes: user is agreeing, confirming, or saying the information is correct (e.g. "yes", "it is correct", "that's right", "correct", "yep", "that's the one").
- no: user is declining, correcting, or wants to give different information.`

const registrationAnalyzerSystem = agenticFlowBase + `
You are an accuracy analyst for a registration flow. The assistant collects one field at a time (full name, date of birth, gender, phone, email). For each user response you must decide:

1. Is this response **accurate and acceptable** for what was asked?
2. What **action** should the system take: accept (store and continue), clarify (user was close but we need one thing clarified), or reask (response was wrong, off-topic, or empty — ask again)

Reply with exactly one JSON object, no other text. Use this shape:
{"valid": true or false, "action": "accept" or "clarify" or "reask", "clarificationMessage": "optional short phrase to say when clarify or reask"}

Rules:
- valid: true only when the response clearly and accurately answers the question.
- For gender we accept male, female, or other (and equivalents like man, woman, m, f); the system will normalize.
- For name, accept phrases like "it is X" or "it would be X"; the system will extract the name.
- action "accept": use when we can proceed with the user's answer. For confirmations accept "yes", "correct", "it is correct", "that's right", etc.
- action "clarify": use when the response is partly right but ambiguous or incomplete (e.g. only first name given, or date missing year). clarificationMessage should politely ask for the missing piece.
- action "reask": use when the response is wrong, off-topic, empty, or unintelligible. clarificationMessage should briefly re-ask the same question or ask to repeat.
- Keep clarificationMessage to one short sentence, friendly and natural for voice.`

const extractFullNameSystem = agenticFlowBase + `
The user was asked for their full legal name. They said something that may include filler (e.g. "it is X", "it would be X", "that would be X"). Extract only the person's full name (first and last if given). Reply with only the name, nothing else. Use proper capitalization. If no name can be extracted, reply with exactly: NONE`

const dobWordsSystem = agenticFlowBase + `
Convert this date (YYYY-MM-DD) to a short phrase for voice when confirming with the caller. Use month name, ordinal day (e.g. 15th), and year. Example: 1999-03-15 → March 15th, 1999. Reply with only the phrase, no quotes.`

const correctionDuringConfirmSystem = agenticFlowBase + `
The user was shown their registration summary and asked "Is everything correct?" They replied with something that may be a correction or confirmation.

IMPORTANT: If the user provides ANY information about a specific field (name, dob, gender, phone, or email), treat it as a correction, even if they're just restating or clarifying. Examples of corrections:
- "my email is jane@gmail.com" or "my email id is jane at gmail dot com" → correcting email
- "actually my phone is 555-123-4567" → correcting phone
- "the name should be Jane Doe" → correcting name
- "my date of birth is March 20th 1985" → correcting dob
- "it's female" or "I'm female" → correcting gender

If the user says "yes", "correct", "that's right", "everything is correct", or similar affirmations → correcting: false
If the user says "no" without providing any field information → correcting: false
If the user provides information about ANY field → correcting: true

Reply with exactly one JSON object, no other text:
{"correcting": true or false, "field": "name" or "dob" or "gender" or "phone" or "email" or "", "newValue": "the new value they gave, or empty string"}`

const genderNormalizeSystem = agenticFlowBase + `
The user was asked for their gender. They said something that may be a transcription or speech-recognition error. Map their reply to exactly one of: male, female, other.

Common transcription errors to correct:
- "mail", "mal", "mayle" → male
- "femail", "femal", "femael" → female
- "woman" / "women" → female
- "man" / "men" → male
- "m" / "f" → male / female
- Non-binary, prefer not to say, other → other

Reply with exactly one word: male, female, or other. No other text.`

const parseEmailSystem = agenticFlowBase + `
The user was asked for their email address. They may have said it in spoken form (e.g. "jane at gmail dot come", "john dot smith at outlook dot com") or with transcription errors ("come" instead of "com").

Your task: convert their reply into a single valid email address in standard format (lowercase, user@domain.tld). Fix obvious typos (e.g. "come" → "com", "dot com" → ".com", "at" → "@"). If the input is already a valid-looking email, return it normalized (lowercase). If no email can be extracted, reply with exactly: NONE`

const dateWordsSystem = `You convert ISO 8601 datetimes (in UTC) into short, natural phrases for voice. Reply with only the phrase, no quotes or extra text. Use weekday, month, ordinal day, and time in words (e.g. "Monday, February 3rd at 9 in the morning", "half past 2 in the afternoon"). When a timezone is given, interpret the UTC instant in that timezone so the spoken time matches the organization's local time.`

const availabilityCondensedSystem = `You format appointment availability for voice. Given a list of ISO 8601 datetimes (UTC), output a single short paragraph that groups slots by date and lists times per date. When a timezone is given, interpret each UTC instant in that timezone so the spoken times match the organization's local time. Format exactly like:
"On February 3rd we have 10am, 11am, 4pm, 6pm. On February 5th we have 3pm, 6pm."
- One sentence per date. Use "On [Month] [ordinal day] we have [time], [time], ..."
- Use natural times: 10am, 11am, 3pm, 6pm.
- Include every slot returned; do not skip any.
- No numbering, bullets, or option labels. Reply with only the paragraph.`

func buildIntentClassifierUserMessage(snippet, lastUserText, contextSuffix string) string {
	return fmt.Sprintf("Recent messages:\n%s\n\nLast user message: %q%s\nReply with only the one-word intent.", snippet, lastUserText, contextSuffix)
}

func buildMatchAppointmentUserMessage(userMessage string, candidates []AppointmentCandidate) string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		provider := c.ProviderName
		if provider == "" {
			provider = "Provider"
		}
		lines = append(lines, fmt.Sprintf("id %d: %s on %s", c.ID, provider, c.DateTime))
	}
	return fmt.Sprintf("User message: %q\n\nAppointments (times in organization timezone):\n%s\n\nReply with only the matching appointment id (number) or NONE:", userMessage, strings.Join(lines, "\n"))
}

func buildParseDateTimeUserMessage(nowUTC, timezone, utterance, conversationContext string) string {
	contextBlock := ""
	if strings.TrimSpace(conversationContext) != "" {
		contextBlock = fmt.Sprintf("\nConversation context (use this to interpret the user's reply — e.g. if the assistant just offered slots on a date, \"10 am\" means that date at 10am):\n%s\n", strings.TrimSpace(conversationContext))
	}
	return fmt.Sprintf("Current time (UTC): %s\nTimezone (interpret user times here): %s%s\nUser said: %q\nReply with one JSON object (kind, when or fromDate/toDate or isoUtc) or INVALID.", nowUTC, timezone, contextBlock, utterance)
}

func buildDobParseUserMessage(utterance string) string {
	return fmt.Sprintf("Caller said: %q\nReply with YYYY-MM-DD or INVALID.", utterance)
}

func buildConfirmYesNoUserMessage(assistantQuestion, userReply string) string {
	return fmt.Sprintf("Assistant asked: %q\nUser said: %q\nReply with only: yes or no", assistantQuestion, userReply)
}

func buildRegistrationAnalyzerUserMessage(step, questionAsked, userResponse string, collected map[string]string) string {
	collectedDesc := "none yet"
	if len(collected) > 0 {
		if b, err := json.Marshal(collected); err == nil {
			collectedDesc = string(b)
		}
	}
	return fmt.Sprintf("Registration step: %s\nQuestion the assistant asked: %q\nUser's response: %q\nData collected so far: %s\n\nReply with one JSON object: {\"valid\": true|false, \"action\": \"accept\"|\"clarify\"|\"reask\", \"clarificationMessage\": \"optional\"}", step, questionAsked, userResponse, collectedDesc)
}

func buildExtractFullNameUserMessage(utterance string) string {
	return fmt.Sprintf("User said: %q\nReply with only the full name, or NONE.", utterance)
}

func buildDobWordsUserMessage(dob string) string {
	return fmt.Sprintf("Date: %s\nReply with only the spoken phrase (e.g. March 15th, 1999).", dob)
}

func buildCorrectionDuringConfirmUserMessage(userMessage, currentSummary string) string {
	return fmt.Sprintf("Current registration summary shown to user:\n%s\n\nUser was asked \"Is everything correct?\" and said: %q\n\nReply with one JSON object: {\"correcting\": true|false, \"field\": \"name\"|\"dob\"|\"gender\"|\"phone\"|\"email\"|\"\", \"newValue\": \"...\"}", currentSummary, userMessage)
}

func buildGenderNormalizeUserMessage(userReply string) string {
	return fmt.Sprintf("User said: %q\nReply with only: male, female, or other", userReply)
}

func buildParseEmailUserMessage(utterance string) string {
	return fmt.Sprintf("User said: %q\nReply with only the normalized email (e.g. user@domain.com), or NONE if no email can be extracted.", utterance)
}

func buildDateWordsSingleUserMessage(isoStart, timezone string) string {
	if timezone != "" {
		return fmt.Sprintf("Convert this datetime (UTC) to a short phrase for voice. Display the time in timezone %s so the spoken time matches that zone:\n%s", timezone, isoStart)
	}
	return "Convert this datetime to a short phrase for voice:\n" + isoStart
}

func buildAvailabilityCondensedUserMessage(isoList, timezone string) string {
	tzLine := ""
	if timezone != "" {
		tzLine = fmt.Sprintf("Interpret all datetimes in timezone %s so the spoken times match that zone.\n\n", timezone)
	}
	return fmt.Sprintf("Format these appointment start times (UTC) as a single paragraph grouped by date. %sInclude every time. Example style: On February 3rd we have 10am, 11am, 4pm, 6pm. On February 5th we have 3pm, 6pm.\n\n%s", tzLine, isoList)
}
