package ask

import (
	"fmt"
	"strings"
)

// Language は回答言語
type Language string

const (
	LanguageDutch    Language = "nl"
	LanguageEnglish  Language = "en"
	LanguageJapanese Language = "ja"
)

// DefaultLanguage はデフォルトの回答言語
const DefaultLanguage = LanguageDutch

// catalog は言語ごとの固定文言
type catalog struct {
	system    string
	userTmpl  string // %[1]s: コンテキスト, %[2]s: 質問
	noResults string
	noAnswer  string
}

var catalogs = map[Language]catalog{
	LanguageDutch: {
		system: "Je bent een assistent die helpt met het beantwoorden van vragen over documenten.\n" +
			"Gebruik alleen de gegeven context om vragen te beantwoorden.\n" +
			"Als je het antwoord niet weet op basis van de context, zeg dat dan eerlijk.\n" +
			"Geef altijd antwoord in het Nederlands.",
		userTmpl:  "Context uit documenten:\n\n%[1]s\n\nVraag: %[2]s",
		noResults: "Ik kon geen relevante informatie vinden in de geüploade documenten voor deze vraag.",
		noAnswer:  "Geen antwoord gegenereerd.",
	},
	LanguageEnglish: {
		system: "You are an assistant that answers questions about documents.\n" +
			"Use only the provided context to answer.\n" +
			"If the context does not contain the answer, say so honestly.\n" +
			"Always answer in English.",
		userTmpl:  "Context from documents:\n\n%[1]s\n\nQuestion: %[2]s",
		noResults: "I could not find any relevant information in the uploaded documents for this question.",
		noAnswer:  "No answer generated.",
	},
	LanguageJapanese: {
		system: "あなたはドキュメントに関する質問に回答するアシスタントです。\n" +
			"与えられたコンテキストのみを使用して回答してください。\n" +
			"コンテキストから答えが分からない場合は、推測せずにその旨を述べてください。\n" +
			"必ず日本語で回答してください。",
		userTmpl:  "ドキュメントのコンテキスト:\n\n%[1]s\n\n質問: %[2]s",
		noResults: "アップロードされたドキュメントから、この質問に関連する情報は見つかりませんでした。",
		noAnswer:  "回答を生成できませんでした。",
	},
}

// ParseLanguage は文字列から Language を返す
func ParseLanguage(s string) (Language, error) {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	if lang == "" {
		return DefaultLanguage, nil
	}
	if _, ok := catalogs[lang]; !ok {
		return "", fmt.Errorf("unsupported answer language: %s", s)
	}
	return lang, nil
}

// NoResultsMessage は関連チャンクが無い場合の固定回答を返す
func NoResultsMessage(lang Language) string {
	return catalogFor(lang).noResults
}

func catalogFor(lang Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[DefaultLanguage]
}

// BuildUserPrompt はコンテキストブロックと質問からユーザープロンプトを構築する
func BuildUserPrompt(lang Language, query string, chunks []string) string {
	return fmt.Sprintf(catalogFor(lang).userTmpl, strings.Join(chunks, "\n\n"), query)
}
