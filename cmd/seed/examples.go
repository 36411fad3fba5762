package main

import (
	"fmt"
	"strings"

	"strive-chatbot-be/internal/entity"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type exampleFile struct {
	Examples []exampleRecord `yaml:"examples"`
}

type exampleRecord struct {
	Domain          string   `yaml:"domain"`
	Utterance       string   `yaml:"utterance"`
	Response        string   `yaml:"response"`
	Problem         string   `yaml:"problem"`
	Solution        string   `yaml:"solution"`
	Outcome         string   `yaml:"outcome"`
	Stage           string   `yaml:"stage"`
	ConversionScore *float64 `yaml:"conversion_score"`
}

// parseExamples decodes the curated example file. Every record needs a domain,
// an utterance and a response; a score outside [0,1] is rejected.
func parseExamples(data []byte) ([]*entity.ConversationExample, error) {
	var file exampleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse examples: %w", err)
	}

	out := make([]*entity.ConversationExample, 0, len(file.Examples))
	for i, r := range file.Examples {
		if strings.TrimSpace(r.Domain) == "" || strings.TrimSpace(r.Utterance) == "" || strings.TrimSpace(r.Response) == "" {
			return nil, fmt.Errorf("example %d: domain, utterance and response are required", i)
		}
		if r.ConversionScore != nil && (*r.ConversionScore < 0 || *r.ConversionScore > 1) {
			return nil, fmt.Errorf("example %d: conversion_score %.2f out of range", i, *r.ConversionScore)
		}
		outcome := r.Outcome
		if outcome == "" {
			outcome = entity.OutcomeInProgress
		}
		out = append(out, &entity.ConversationExample{
			Id:              uuid.New(),
			DomainTag:       r.Domain,
			Utterance:       strings.TrimSpace(r.Utterance),
			Response:        strings.TrimSpace(r.Response),
			Problem:         r.Problem,
			Solution:        r.Solution,
			Outcome:         outcome,
			Stage:           r.Stage,
			ConversionScore: r.ConversionScore,
		})
	}
	return out, nil
}
