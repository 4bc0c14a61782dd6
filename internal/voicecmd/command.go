// Package voicecmd turns finalised speech transcripts into navigation and
// answer commands for the learning app.
//
// A [Resolver] builds the phrase set that is valid for the caller's page and
// language (global navigation, topic names, practice controls, settings
// toggles, and the lesson titles or answer options the caller supplies),
// then resolves an utterance against it in stages: exact match for phrases in
// non-Latin scripts, ASR correction and fuzzy window matching via
// [textmatch.Vocabulary], spoken option numbers, and finally an optional
// phonetic rescue. Each [Resolution] carries the spoken confirmation for the
// session language.
package voicecmd

import (
	"fmt"
	"slices"
	"strings"
)

// Command identifies an action the client application performs.
type Command string

const (
	GoToDashboard         Command = "go_to_dashboard"
	GoToProgress          Command = "go_to_progress"
	GoToSettings          Command = "go_to_settings"
	GoToLessons           Command = "go_to_lessons"
	GoBack                Command = "go_back"
	Exit                  Command = "exit"
	Help                  Command = "help"
	OpenTopic             Command = "open_topic"
	OpenLesson            Command = "open_lesson"
	StartPractice         Command = "start_practice"
	ReadQuestion          Command = "read_question"
	NextQuestion          Command = "next_question"
	StopPractice          Command = "stop_practice"
	SelectOption          Command = "select_option"
	ToggleAudioNavigation Command = "toggle_audio_navigation"
	ToggleDyslexiaFont    Command = "toggle_dyslexia_font"
	ToggleSubtitles       Command = "toggle_subtitles"
	ChangeLanguage        Command = "change_language"
	ChangeAudioSpeed      Command = "change_audio_speed"
	ChangeAudioPitch      Command = "change_audio_pitch"
)

var allCommands = []Command{
	GoToDashboard, GoToProgress, GoToSettings, GoToLessons, GoBack, Exit, Help,
	OpenTopic, OpenLesson, StartPractice, ReadQuestion, NextQuestion, StopPractice,
	SelectOption, ToggleAudioNavigation, ToggleDyslexiaFont, ToggleSubtitles,
	ChangeLanguage, ChangeAudioSpeed, ChangeAudioPitch,
}

// Commands returns every known command.
func Commands() []Command { return slices.Clone(allCommands) }

// IsValid reports whether c is a known command.
func (c Command) IsValid() bool { return slices.Contains(allCommands, c) }

// Navigates reports whether executing c leaves the current page. Pending
// announcements for the old page are stale once it does.
func (c Command) Navigates() bool {
	switch c {
	case GoToDashboard, GoToProgress, GoToSettings, GoToLessons, GoBack, OpenTopic, OpenLesson:
		return true
	}
	return false
}

// Topic arguments carried by [OpenTopic].
const (
	TopicBasic        = "basic"
	TopicIntermediate = "intermediate"
	TopicAlgebra      = "algebra"
)

// Page is the client page the utterance was spoken on. It scopes which
// phrases are valid.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageTopic     Page = "topic"
	PageLesson    Page = "lesson"
	PageProgress  Page = "progress"
	PageSettings  Page = "settings"
	PageOther     Page = "other"
)

var allPages = []Page{PageDashboard, PageTopic, PageLesson, PageProgress, PageSettings, PageOther}

// IsValid reports whether p is a known page.
func (p Page) IsValid() bool { return slices.Contains(allPages, p) }

// ParsePage converts s (case-insensitive) to a Page. The empty string maps
// to [PageOther].
func ParsePage(s string) (Page, error) {
	if s == "" {
		return PageOther, nil
	}
	p := Page(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("voicecmd: unknown page %q", s)
	}
	return p, nil
}

// Language is the interface language of a session.
type Language string

const (
	English Language = "english"
	Hausa   Language = "hausa"
	Kanuri  Language = "kanuri"
	Arabic  Language = "arabic"
)

var allLanguages = []Language{English, Hausa, Kanuri, Arabic}

// Languages returns every supported language.
func Languages() []Language { return slices.Clone(allLanguages) }

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool { return slices.Contains(allLanguages, l) }

// ParseLanguage converts s (case-insensitive) to a Language. The empty
// string maps to [English].
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return English, nil
	}
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("voicecmd: unknown language %q", s)
	}
	return l, nil
}

// Method records which resolver stage produced a [Resolution].
type Method string

const (
	MethodExact    Method = "exact"
	MethodFuzzy    Method = "fuzzy"
	MethodNumber   Method = "number"
	MethodPhonetic Method = "phonetic"
)
