// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package captcha renders the human-verification puzzles that gate signup.
package captcha

import (
	"image/color"

	"github.com/mojocn/base64Captcha"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
)

const (
	imageWidth  = 240
	imageHeight = 80

	// answerLength balances readability against brute-force resistance.
	// Answers are compared case-sensitively downstream, so the source set
	// stays lowercase to keep transcription unambiguous.
	answerLength = 5

	// answerSource omits characters that render ambiguously (0/o, 1/l/i).
	answerSource = "23456789abcdefghjkmnpqrstuvwxyz"

	noiseCount = 2
)

// Generator renders distorted-text captchas as base64 PNG data URIs.
// It implements auth.CaptchaGenerator.
type Generator struct {
	driver base64Captcha.Driver
}

var _ auth.CaptchaGenerator = (*Generator)(nil)

// NewGenerator creates a Generator using the embedded default fonts.
func NewGenerator() *Generator {
	driver := base64Captcha.NewDriverString(
		imageHeight,
		imageWidth,
		noiseCount,
		base64Captcha.OptionShowHollowLine,
		answerLength,
		answerSource,
		&color.RGBA{R: 254, G: 254, B: 254, A: 254},
		nil,
		nil,
	)
	return &Generator{driver: driver.ConvertFonts()}
}

// Generate renders a fresh puzzle and returns its expected answer together
// with the image as a "data:image/png;base64," URI.
func (g *Generator) Generate() (string, string, error) {
	_, content, answer := g.driver.GenerateIdQuestionAnswer()

	item, err := g.driver.DrawCaptcha(content)
	if err != nil {
		return "", "", oops.Code("CAPTCHA_RENDER_FAILED").
			With("operation", "draw captcha").
			Wrap(err)
	}

	return answer, item.EncodeB64string(), nil
}
