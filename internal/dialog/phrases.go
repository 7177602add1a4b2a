package dialog

import "fmt"

// All caller-facing copy lives here; nodes never hardcode sentences.

const (
	phraseGreetGeneral    = "Thank you for calling! This is your scheduling assistant. How may I help you today?"
	phraseMentionServices = "How may I help you today—would you like to book an appointment, reschedule, cancel, or register?"

	phraseAskCurrentOrFirst = "Are you already registered with us, or is this your first time calling?"
	phraseAskName           = "May I have your name please?"
	phraseNameNotFoundSpell = "I couldn't find that name in our system. Could you please spell your last name for me?"
	phraseAskDOBConfirm     = "To confirm, may I have your date of birth?"
	phraseDOBMismatchPhone  = "That doesn't match our records. Let me try with your phone number."
	phraseAskPhone          = "What's your phone number?"
	phraseOfferRegister     = "I can't find an existing record under that name or phone number. Would you like to register as a new user?"
	phraseTransferLocate    = "Let me transfer you to our staff who can help locate your record."
	phraseConfirmServices   = "Thanks for confirming. How would you like to proceed—book an appointment, reschedule, cancel?"
	phraseHelpRegister      = "I'll help you register. One moment."

	phraseDOBVerifyFailTransfer = "I couldn't verify your date of birth. I'll connect you with our staff to help."
	phraseIdentityFailedBye     = "The data in our systems doesn't match. Goodbye."

	phraseNotAccepting      = "I'm sorry, we're not accepting new registrations at this time. Would you like me to add you to our waitlist?"
	phraseWaitlistAdded     = "You've been added. We'll contact you when spots open up."
	phraseWaitlistDeclined  = "I understand. Is there anything else I can help with?"
	phraseRegisterIntro     = "Wonderful! I can help you register. This will take about 2 minutes. I'll need some information for your record."
	phraseRegisterFullName  = "What is your full legal name?"
	phraseRegisterDOB       = "What is your date of birth?"
	phraseRegisterGender    = "What is your gender?"
	phraseRegisterPhone     = "What's the best phone number to reach you?"
	phraseRegisterEmail     = "And your email address? This is optional but helps us send appointment reminders."
	phraseRegisterSuccess   = "You're all registered! Welcome. Would you like to book your first appointment now?"
	phraseRegisterTransfer  = "I'm sorry, I wasn't able to complete your registration. Let me transfer you to our staff who can help."
	phraseAlreadyRegistered = "You're already registered. Is there anything else I can help with—book, reschedule, or cancel an appointment?"
	phraseCorrectionDecline = "No problem. Let me connect you with our staff who can help make any changes."

	phraseArrivalInstructions = "Please arrive 5 minutes early. Is there anything else I can help you with?"
	phrasePhysicalPrepNote    = "If any preparation is needed, we'll let you know. Is there anything else?"
	phrasePhoneVisitNote      = "The provider will call you at the number we have on file."
	phraseNoOpenings          = "I don't see any openings for that date. Would you like to try a different day?"

	phraseFindUpcoming    = "Let me find your upcoming appointments..."
	phraseRescheduleDone  = "Your appointment has been rescheduled. Is there anything else?"
	phraseWhichSlot       = "Which slot would you like? Say the number (1 or 2) or the date and time, for example February 5th at 3pm, or say next week for more dates."
	phraseNoAppointments  = "You have no upcoming appointments."
	phraseUpcomingIntro   = "Here are your upcoming appointments:"
	phraseNothingToCancel = "You have no upcoming appointments to cancel."
	phraseWhichToCancel   = "Which appointment would you like to cancel? Say the option number, or say no to go back."
	phraseSureCancel      = "Are you sure you'd like to cancel?"
	phraseCancelDone      = "Your appointment has been cancelled. Would you like to schedule for another day?"
	phraseCancelKept      = "No problem, your appointment is still scheduled. Is there anything else I can help with?"

	phraseEmergency911 = "This sounds like a medical emergency. Please hang up and call 911 immediately. Do not wait for an appointment."
	phraseTransfer     = "Let me transfer you to our staff. One moment please."
	phraseRejection    = "I'm sorry, this line is for appointments only. For other inquiries, please visit our website or call back during business hours. Goodbye."
	phraseClose        = "Thank you for calling! Have a wonderful day."
	phraseAnythingElse = "Is there anything else I can help you with?"

	phraseToolRetry = "I'm sorry, let me try that again..."

	phraseNeedLookupFirst = "I need to look you up first. Are you calling from your registered phone number?"
)

func phraseGreetPersonalized(userName string) string {
	return fmt.Sprintf("Hello %s, thank you for calling! This is your scheduling assistant. Please confirm your date of birth to continue.", userName)
}

func phraseConfirmSpelling(letters string) string {
	return fmt.Sprintf("That's %s, correct?", letters)
}

func phraseSearchingFor(name string) string {
	return fmt.Sprintf("Thank you. Let me search for %s...", name)
}

func phraseSingleSlotOffer(dateWords string) string {
	return fmt.Sprintf("I have %s available. Is that the one you'd like to book?", dateWords)
}

func phraseConfirmSlot(dateWords string) string {
	return fmt.Sprintf("I have %s. Is that the one you'd like to book?", dateWords)
}

func phraseBooked(dateWords string) string {
	return fmt.Sprintf("You're all set! Your appointment is confirmed for %s. %s", dateWords, phraseArrivalInstructions)
}

func phraseOfferSlots(condensed string) string {
	return fmt.Sprintf("We have availability. %s Which slot would you like? Say the number (1 for the first, 2 for the second) or say the date and time, for example February 5th at 3pm or tomorrow at 10am. Or say \"next week\" for more dates.", condensed)
}

func phraseOfferSlotsSameDay(condensed string) string {
	return fmt.Sprintf("We have availability on that day. %s Which slot would you like? Say the number or the time.", condensed)
}

func phraseOfferSlotsNearby(condensed string) string {
	return fmt.Sprintf("We don't have availability on that exact day. Here are options in the next few days: %s Which would you like? Say the number or the date and time.", condensed)
}

func phraseRescheduleOptions(condensed string) string {
	return fmt.Sprintf("New times: %s Which slot would you like? Say the number (1 for the first, 2 for the second) or say the date and time, for example February 5th at 3pm.", condensed)
}

func phraseRescheduleConfirm(dateWords string) string {
	return fmt.Sprintf("Got it, %s. Confirm to reschedule?", dateWords)
}

func phraseConfirmCallerPhone(formatted string) string {
	return fmt.Sprintf("Thanks. The number we have for this call is %s. Is that the best number to reach you?", formatted)
}

func phraseRegistrationSummary(name, dob, gender, phone, email string) string {
	summary := fmt.Sprintf("Let me confirm your information:\n- Name: %s\n- Date of birth: %s\n- Gender: %s\n- Phone: %s", name, dob, gender, phone)
	if email != "" {
		summary += "\n- Email: " + email
	}
	return summary + "\n\nIs everything correct?"
}
