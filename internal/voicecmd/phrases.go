package voicecmd

import "slices"

// Phrase is a spoken form of a command.
type Phrase struct {
	Text    string
	Command Command
	Arg     string
}

// ExtraPhrase is a configured phrase added to the built-in tables. Empty
// Pages or Languages mean "all".
type ExtraPhrase struct {
	Phrase
	Pages     []Page
	Languages []Language
}

func (e ExtraPhrase) appliesTo(page Page, lang Language) bool {
	return (len(e.Pages) == 0 || slices.Contains(e.Pages, page)) &&
		(len(e.Languages) == 0 || slices.Contains(e.Languages, lang))
}

func ph(text string, cmd Command) Phrase { return Phrase{Text: text, Command: cmd} }

func topic(text, arg string) Phrase { return Phrase{Text: text, Command: OpenTopic, Arg: arg} }

// globalPhrases are valid on every page in every session language; learners
// mix languages freely when navigating.
var globalPhrases = map[Language][]Phrase{
	English: {
		ph("go to dashboard", GoToDashboard),
		ph("go to progress", GoToProgress),
		ph("go to settings", GoToSettings),
		ph("go to lessons", GoToLessons),
		ph("go back", GoBack),
		ph("exit", Exit),
	},
	Hausa: {
		ph("zuwa dashboard", GoToDashboard),
		ph("zuwa progress", GoToProgress),
		ph("zuwa ci gaba", GoToProgress),
		ph("zuwa settings", GoToSettings),
		ph("zuwa saitunan", GoToSettings),
		ph("zuwa darussa", GoToLessons),
		ph("koma baya", GoBack),
		ph("fita", Exit),
	},
	Kanuri: {
		ph("dashboard zuwa", GoToDashboard),
		ph("progress zuwa", GoToProgress),
		ph("settings zuwa", GoToSettings),
		ph("darussa zuwa", GoToLessons),
		ph("baya koma", GoBack),
	},
	Arabic: {
		ph("لوحة القيادة", GoToDashboard),
		ph("التقدم", GoToProgress),
		ph("الإعدادات", GoToSettings),
		ph("الدروس", GoToLessons),
		ph("رجوع", GoBack),
		ph("العودة", GoBack),
		ph("خروج", Exit),
	},
}

var helpPhrases = map[Language][]Phrase{
	English: {ph("help", Help), ph("commands", Help), ph("what can i say", Help)},
	Hausa:   {ph("taimako", Help), ph("umarni", Help), ph("me za na iya yi", Help)},
	Kanuri:  {ph("taimako", Help), ph("umarni", Help)},
	Arabic:  {ph("مساعدة", Help), ph("الأوامر", Help)},
}

var topicPhrases = map[Language][]Phrase{
	English: {
		topic("basic math", TopicBasic),
		topic("basic mathematics", TopicBasic),
		topic("intermediate math", TopicIntermediate),
		topic("intermediate mathematics", TopicIntermediate),
		topic("algebra", TopicAlgebra),
	},
	Hausa: {
		topic("lissafin farko", TopicBasic),
		topic("lissafi na asali", TopicBasic),
		topic("lissafin asali", TopicBasic),
		topic("lissafin matsakaici", TopicIntermediate),
		topic("lissafi na matsakaici", TopicIntermediate),
		topic("algebra", TopicAlgebra),
	},
	Kanuri: {
		topic("lissafin farko", TopicBasic),
		topic("lissafin asali", TopicBasic),
		topic("lissafin matsakaici", TopicIntermediate),
		topic("algebra", TopicAlgebra),
	},
	Arabic: {
		topic("الرياضيات الأساسية", TopicBasic),
		topic("الرياضيات المتوسطة", TopicIntermediate),
		topic("الجبر", TopicAlgebra),
	},
}

var practicePhrases = map[Language][]Phrase{
	English: {
		ph("start practice", StartPractice),
		ph("begin practice", StartPractice),
		ph("start", StartPractice),
		ph("read question", ReadQuestion),
		ph("repeat question", ReadQuestion),
		ph("hear question", ReadQuestion),
		ph("next question", NextQuestion),
		ph("next", NextQuestion),
		ph("stop practice", StopPractice),
		ph("end practice", StopPractice),
		ph("stop", StopPractice),
	},
	Hausa: {
		ph("fara aiki", StartPractice),
		ph("fara horawa", StartPractice),
		ph("karanta tambaya", ReadQuestion),
		ph("maimaita tambaya", ReadQuestion),
		ph("tambaya ta gaba", NextQuestion),
		ph("na gaba", NextQuestion),
		ph("dakatar da aiki", StopPractice),
		ph("kare aiki", StopPractice),
	},
	Kanuri: {
		ph("fara aiki", StartPractice),
		ph("karanta tambaya", ReadQuestion),
		ph("maimaita tambaya", ReadQuestion),
		ph("tambaya ta gaba", NextQuestion),
		ph("dakatar da aiki", StopPractice),
	},
	Arabic: {
		ph("ابدأ التمرين", StartPractice),
		ph("اقرأ السؤال", ReadQuestion),
		ph("كرر السؤال", ReadQuestion),
		ph("السؤال التالي", NextQuestion),
		ph("توقف عن التمرين", StopPractice),
	},
}

var settingsPhrases = map[Language][]Phrase{
	English: {
		ph("toggle audio navigation", ToggleAudioNavigation),
		ph("toggle dyslexia font", ToggleDyslexiaFont),
		ph("toggle subtitles", ToggleSubtitles),
		ph("change language", ChangeLanguage),
		ph("change audio speed", ChangeAudioSpeed),
		ph("change audio pitch", ChangeAudioPitch),
	},
	Hausa: {
		ph("kunna kewayawa da murya", ToggleAudioNavigation),
		ph("kunna rubutun dyslexia", ToggleDyslexiaFont),
		ph("kunna rubutu", ToggleSubtitles),
		ph("canza harshe", ChangeLanguage),
		ph("canza saurin sauti", ChangeAudioSpeed),
		ph("canza sautin sauti", ChangeAudioPitch),
	},
	Kanuri: {
		ph("kunna murya kewayawa", ToggleAudioNavigation),
		ph("kunna rubutun dyslexia", ToggleDyslexiaFont),
		ph("kunna rubutu", ToggleSubtitles),
		ph("canza harshe", ChangeLanguage),
		ph("canza saurin sauti", ChangeAudioSpeed),
		ph("canza sautin sauti", ChangeAudioPitch),
	},
	Arabic: {
		ph("تبديل التنقل الصوتي", ToggleAudioNavigation),
		ph("تبديل خط الديسلكسيا", ToggleDyslexiaFont),
		ph("تبديل النصوص التوضيحية", ToggleSubtitles),
		ph("تغيير اللغة", ChangeLanguage),
		ph("تغيير سرعة الصوت", ChangeAudioSpeed),
		ph("تغيير نبرة الصوت", ChangeAudioPitch),
	},
}

// scoped returns the phrases of table for lang followed by the English
// ones, so English commands keep working in every session language.
func scoped(table map[Language][]Phrase, lang Language) []Phrase {
	out := slices.Clone(table[lang])
	if lang != English {
		out = append(out, table[English]...)
	}
	return out
}

// PhrasesFor returns the built-in phrases valid on page for a session in
// lang, most specific first. Caller-supplied lesson titles and answer
// options are not included; see [Resolver.PhraseSet].
func PhrasesFor(page Page, lang Language) []Phrase {
	var out []Phrase
	switch page {
	case PageLesson:
		out = append(out, scoped(practicePhrases, lang)...)
	case PageSettings:
		out = append(out, scoped(settingsPhrases, lang)...)
	}
	out = append(out, scoped(helpPhrases, lang)...)
	out = append(out, scoped(topicPhrases, lang)...)
	for _, l := range allLanguages {
		out = append(out, globalPhrases[l]...)
	}
	return out
}
