package voicecmd

import (
	"fmt"
	"strings"
)

// messages maps a message key to its text per language. Kanuri falls back
// to Hausa, everything else to English. A "%s" verb is filled with the
// command argument.
var messages = map[string]map[Language]string{
	string(GoToDashboard): {
		English: "Going to Dashboard",
		Hausa:   "Zuwa Dashboard",
		Kanuri:  "Dashboard zuwa",
		Arabic:  "الانتقال إلى لوحة القيادة",
	},
	string(GoToProgress): {
		English: "Going to Progress",
		Hausa:   "Zuwa Ci gaba",
		Kanuri:  "Ci gaba zuwa",
		Arabic:  "الانتقال إلى التقدم",
	},
	string(GoToSettings): {
		English: "Going to Settings",
		Hausa:   "Zuwa Saitunan",
		Kanuri:  "Saitunan zuwa",
		Arabic:  "الانتقال إلى الإعدادات",
	},
	string(GoToLessons): {
		English: "Going to Lessons",
		Hausa:   "Zuwa Darussa",
		Kanuri:  "Darussa zuwa",
		Arabic:  "الانتقال إلى الدروس",
	},
	string(GoBack): {
		English: "Going back",
		Hausa:   "Koma baya",
		Kanuri:  "Baya koma",
		Arabic:  "رجوع",
	},
	string(Exit): {
		English: "Audio navigation mode deactivated.",
		Hausa:   "An kashe yanayin kewayawa da murya.",
		Kanuri:  "Murya kewayawa yanayi kashe.",
		Arabic:  "تم إيقاف وضع التنقل الصوتي.",
	},
	string(OpenTopic) + ":" + TopicBasic: {
		English: "Going to Basic Math",
		Hausa:   "Zuwa Lissafin Asali",
		Kanuri:  "Lissafin Asali zuwa",
		Arabic:  "الانتقال إلى الرياضيات الأساسية",
	},
	string(OpenTopic) + ":" + TopicIntermediate: {
		English: "Going to Intermediate Math",
		Hausa:   "Zuwa Lissafin Matsakaici",
		Kanuri:  "Lissafin Matsakaici zuwa",
		Arabic:  "الانتقال إلى الرياضيات المتوسطة",
	},
	string(OpenTopic) + ":" + TopicAlgebra: {
		English: "Going to Algebra",
		Hausa:   "Zuwa Algebra",
		Kanuri:  "Algebra zuwa",
		Arabic:  "الانتقال إلى الجبر",
	},
	string(OpenLesson): {
		English: "Opening lesson: %s",
		Hausa:   "Bude darasi: %s",
		Kanuri:  "Darasi bude: %s",
		Arabic:  "فتح الدرس: %s",
	},
	string(StartPractice): {
		English: "Starting practice",
		Hausa:   "Fara aiki",
		Arabic:  "بدء التمرين",
	},
	string(ReadQuestion): {
		English: "Reading question",
		Hausa:   "Karanta tambaya",
		Arabic:  "قراءة السؤال",
	},
	string(NextQuestion): {
		English: "Moving to next question",
		Hausa:   "Tambaya ta gaba",
		Arabic:  "السؤال التالي",
	},
	string(StopPractice): {
		English: "Stopping practice",
		Hausa:   "Dakatar da aiki",
		Arabic:  "إيقاف التمرين",
	},
	string(SelectOption): {
		English: "Selected: %s. Say 'Next question' to continue.",
		Hausa:   "An zaba: %s. Ka ce 'Tambaya ta gaba' don ci gaba.",
		Kanuri:  "An zaba: %s. 'Tambaya ta gaba' ce ci gaba don.",
		Arabic:  "تم اختيار: %s. قل 'السؤال التالي' للمتابعة.",
	},
	string(ToggleAudioNavigation): {
		English: "Toggling audio navigation",
		Hausa:   "Kunna kewayawa da murya",
		Arabic:  "تبديل التنقل الصوتي",
	},
	string(ToggleDyslexiaFont): {
		English: "Toggling dyslexia font",
		Hausa:   "Rubutun dyslexia",
		Arabic:  "تبديل خط الديسلكسيا",
	},
	string(ToggleSubtitles): {
		English: "Toggling subtitles",
		Hausa:   "Rubutu",
		Arabic:  "تبديل النصوص التوضيحية",
	},
	string(ChangeLanguage): {
		English: "Language selector opened",
		Hausa:   "Zabin harshe ya bude",
		Arabic:  "تم فتح اختيار اللغة",
	},
	string(ChangeAudioSpeed): {
		English: "Changing audio speed",
		Hausa:   "Canza saurin sauti",
		Arabic:  "تغيير سرعة الصوت",
	},
	string(ChangeAudioPitch): {
		English: "Changing audio pitch",
		Hausa:   "Canza sautin sauti",
		Arabic:  "تغيير نبرة الصوت",
	},

	"not_understood": {
		English: "Sorry, I didn't catch that. Please try again.",
		Hausa:   "Yi hakuri, ban gane ba. Da fatan za a sake gwadawa.",
		Kanuri:  "Yi hakuri, ban gane ba. Sake gwadawa.",
		Arabic:  "عذراً، لم أفهم. يرجى المحاولة مرة أخرى.",
	},
	"option_not_matched": {
		English: "I heard \"%s\" but couldn't match it to an answer option. Please try again.",
		Hausa:   "Na ji \"%s\" amma ban sami amsar da ta dace ba. Da fatan za a sake gwadawa.",
	},

	"help:" + string(PageDashboard): {
		English: "Available commands: Global - 'Go to Progress', 'Go to Settings', 'Go to Lessons'. Topics - 'Basic Math', 'Intermediate Math', 'Algebra'. Say 'Exit' to exit audio navigation mode.",
		Hausa:   "Umarnin da ake iya amfani da su: Gaba daya - 'Zuwa Progress', 'Zuwa Settings', 'Zuwa Darussa'. Batutuwa - 'Lissafin Asali', 'Lissafin Matsakaici', 'Algebra'. Ka ce 'Fita' don fita daga yanayin kewayawa da murya.",
		Kanuri:  "Umarni da ake iya amfani: Gaba daya - 'Progress zuwa', 'Settings zuwa', 'Darussa zuwa'. Batutuwa - 'Lissafin Asali', 'Lissafin Matsakaici', 'Algebra'. 'Fita' ce murya kewayawa yanayi daga fita don.",
	},
	"help:" + string(PageTopic): {
		English: "Available commands: Say lesson names to navigate to lessons, 'Go back' to return to dashboard. Global - 'Go to Progress', 'Go to Settings'. Say 'Exit' to exit audio navigation mode.",
		Hausa:   "Umarnin da ake iya amfani da su: Ka ce sunaye na darussa don zuwa darussa, 'Koma baya' don komawa dashboard. Gaba daya - 'Zuwa Progress', 'Zuwa Settings'. Ka ce 'Fita' don fita daga yanayin kewayawa da murya.",
		Kanuri:  "Umarni da ake iya amfani: Darussa sunaye ce darussa zuwa don, 'Baya koma' ce dashboard komawa don. Gaba daya - 'Progress zuwa', 'Settings zuwa'. 'Fita' ce murya kewayawa yanayi daga fita don.",
	},
	"help:" + string(PageLesson): {
		English: "Available commands: 'Start practice', 'Read question', 'Next question', 'Repeat question', 'Stop practice'. Global - 'Go to Dashboard', 'Go to Progress', 'Go to Settings'. Say 'Exit' to exit audio navigation mode.",
		Hausa:   "Umarnin da ake iya amfani da su: 'Fara aiki', 'Karanta tambaya', 'Tambaya ta gaba', 'Maimaita tambaya', 'Dakatar da aiki'. Gaba daya - 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Settings'. Ka ce 'Fita' don fita daga yanayin kewayawa da murya.",
		Kanuri:  "Umarni da ake iya amfani: 'Fara aiki', 'Karanta tambaya', 'Tambaya ta gaba', 'Maimaita tambaya', 'Dakatar da aiki'. Gaba daya - 'Dashboard zuwa', 'Progress zuwa', 'Settings zuwa'. 'Fita' ce murya kewayawa yanayi daga fita don.",
	},
	"help:" + string(PageSettings): {
		English: "Available commands: 'Toggle audio navigation', 'Toggle dyslexia font', 'Toggle subtitles', 'Change language', 'Change audio speed', 'Change audio pitch'. Global - 'Go to Dashboard', 'Go to Progress', 'Go to Lessons'. Say 'Exit' to exit audio navigation mode.",
		Hausa:   "Umarnin da ake iya amfani da su: 'Kunna kewayawa da murya', 'Kunna rubutun dyslexia', 'Kunna rubutu', 'Canza harshe', 'Canza saurin sauti', 'Canza sautin sauti'. Gaba daya - 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Darussa'. Ka ce 'Fita' don fita daga yanayin kewayawa da murya.",
	},
	"help:" + string(PageOther): {
		English: "Global commands: 'Go to Dashboard', 'Go to Progress', 'Go to Settings', 'Go to Lessons'. Say 'Exit' to exit audio navigation mode.",
		Hausa:   "Umarnin gaba daya: 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Settings', 'Zuwa Darussa'. Ka ce 'Fita' don fita daga yanayin kewayawa da murya.",
		Kanuri:  "Gaba daya umarni: 'Dashboard zuwa', 'Progress zuwa', 'Settings zuwa', 'Darussa zuwa'. 'Fita' ce murya kewayawa yanayi daga fita don.",
	},

	"welcome:" + string(PageDashboard): {
		English: "Audio navigation activated. Welcome to your dashboard. Global commands: Say 'Go to Progress', 'Go to Settings', or 'Go to Lessons'. Topic commands: Say 'Basic Math', 'Intermediate Math', or 'Algebra'. Say 'Help' to repeat these commands. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Barka da zuwa dashboard naka. Umarnin gaba daya: Ka ce 'Zuwa Progress', 'Zuwa Settings', ko 'Zuwa Darussa'. Umarnin batu: Ka ce 'Lissafin Asali', 'Lissafin Matsakaici', ko 'Algebra'. Ka ce 'Taimako' don maimaita wadannan umarni. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
	"welcome:" + string(PageTopic): {
		English: "Audio navigation activated. You're now in a topic page. Say the lesson name to go to that lesson, or say 'Go back' to return to dashboard. Global commands: 'Go to Progress', 'Go to Settings'. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Yanzu kana cikin shafin batu. Ka ce sunan darasi don zuwa wannan darasi, ko ka ce 'Koma baya' don komawa dashboard. Umarnin gaba daya: 'Zuwa Progress', 'Zuwa Settings'. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
	"welcome:" + string(PageLesson): {
		English: "Audio navigation activated. You're now in a lesson. Say 'Start practice' to begin, 'Read question' to hear the current question, 'Next question' to continue, or 'Stop practice' to end. Global commands: 'Go to Dashboard', 'Go to Progress', 'Go to Settings'. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Yanzu kana cikin darasi. Ka ce 'Fara aiki' don farawa, 'Karanta tambaya' don jin tambayar yanzu, 'Tambaya ta gaba' don ci gaba, ko 'Dakatar da aiki' don karewa. Umarnin gaba daya: 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Settings'. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
	"welcome:" + string(PageProgress): {
		English: "Audio navigation activated. You're viewing your progress. Global commands: 'Go to Dashboard', 'Go to Settings', 'Go to Lessons'. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Kana kallon ci gaban ka. Umarnin gaba daya: 'Zuwa Dashboard', 'Zuwa Settings', 'Zuwa Darussa'. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
	"welcome:" + string(PageSettings): {
		English: "Audio navigation activated. You're in settings. Say 'Toggle audio navigation', 'Toggle dyslexia font', 'Toggle subtitles', 'Change language', 'Change audio speed', or 'Change audio pitch'. Global commands: 'Go to Dashboard', 'Go to Progress', 'Go to Lessons'. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Kana cikin saitunan. Ka ce 'Kunna kewayawa da murya', 'Kunna rubutun dyslexia', 'Kunna rubutu', 'Canza harshe', 'Canza saurin sauti', ko 'Canza sautin sauti'. Umarnin gaba daya: 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Darussa'. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
	"welcome:" + string(PageOther): {
		English: "Audio navigation activated. Global commands: 'Go to Dashboard', 'Go to Progress', 'Go to Settings', 'Go to Lessons'. Say 'Help' for more commands. To exit audio navigation mode, say 'Exit'.",
		Hausa:   "An kunna kewayawa da murya. Umarnin gaba daya: 'Zuwa Dashboard', 'Zuwa Progress', 'Zuwa Settings', 'Zuwa Darussa'. Ka ce 'Taimako' don karin umarni. Don fita daga yanayin kewayawa da murya, ka ce 'Fita'.",
	},
}

func lookup(key string, lang Language) string {
	m, ok := messages[key]
	if !ok {
		return ""
	}
	if s, ok := m[lang]; ok {
		return s
	}
	if s, ok := m[Hausa]; ok && lang == Kanuri {
		return s
	}
	return m[English]
}

// Announcement returns the spoken confirmation for cmd in lang. Help
// commands announce the help text of page.
func Announcement(cmd Command, arg string, page Page, lang Language) string {
	switch cmd {
	case Help:
		return HelpText(page, lang)
	case OpenTopic:
		return lookup(string(OpenTopic)+":"+arg, lang)
	}
	msg := lookup(string(cmd), lang)
	if strings.Contains(msg, "%s") {
		return fmt.Sprintf(msg, arg)
	}
	return msg
}

// HelpText lists the commands available on page. Progress falls back to the
// general list.
func HelpText(page Page, lang Language) string {
	if s := lookup("help:"+string(page), lang); s != "" {
		return s
	}
	return lookup("help:"+string(PageOther), lang)
}

// WelcomeText is spoken when audio navigation is switched on.
func WelcomeText(page Page, lang Language) string {
	if s := lookup("welcome:"+string(page), lang); s != "" {
		return s
	}
	return lookup("welcome:"+string(PageOther), lang)
}

// NotUnderstoodText is spoken when an utterance resolves to nothing. On a
// lesson page with answer options the heard text is echoed back.
func NotUnderstoodText(heard string, page Page, lang Language, hasOptions bool) string {
	if page == PageLesson && hasOptions && strings.TrimSpace(heard) != "" {
		return fmt.Sprintf(lookup("option_not_matched", lang), heard)
	}
	return lookup("not_understood", lang)
}
