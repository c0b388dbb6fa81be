package session

import "errors"

// Language is a translation language selected from a fixed set.
type Language string

const (
	LangEnglish    Language = "en"
	LangSpanish    Language = "es"
	LangFrench     Language = "fr"
	LangGerman     Language = "de"
	LangItalian    Language = "it"
	LangPortuguese Language = "pt"
	LangRussian    Language = "ru"
	LangJapanese   Language = "ja"
	LangKorean     Language = "ko"
	LangChinese    Language = "zh"
)

var supportedLanguages = map[Language]bool{
	LangEnglish:    true,
	LangSpanish:    true,
	LangFrench:     true,
	LangGerman:     true,
	LangItalian:    true,
	LangPortuguese: true,
	LangRussian:    true,
	LangJapanese:   true,
	LangKorean:     true,
	LangChinese:    true,
}

var ErrUnknownLanguage = errors.New("unknown language")

func ParseLanguage(l string) (Language, error) {
	lang := Language(l)
	if !supportedLanguages[lang] {
		return "", ErrUnknownLanguage
	}
	return lang, nil
}
