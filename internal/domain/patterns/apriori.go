package patterns

import (
	"math"
	"sort"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
)

// ══════════════════════════════════════════════════════════════════════════════
// APRIORI
// ══════════════════════════════════════════════════════════════════════════════

// Rule - ассоциативное правило Antecedent => Consequent.
type Rule struct {
	Antecedent TraitSet `json:"antecedent"`
	Consequent TraitSet `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
}

// MinerConfig - пороги поиска.
type MinerConfig struct {
	// MinSupport - минимальная доля транзакций с набором. По умолчанию 0.1.
	MinSupport float64

	// MinConfidence - минимальная достоверность правила. По умолчанию 0.5.
	MinConfidence float64

	// MinTransactions - при меньшем числе транзакций поиск не выполняется.
	// По умолчанию 6.
	MinTransactions int
}

// DefaultMinerConfig возвращает пороги по умолчанию.
func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		MinSupport:      0.1,
		MinConfidence:   0.5,
		MinTransactions: 6,
	}
}

// Miner ищет правила. Не хранит состояния между вызовами.
type Miner struct {
	config MinerConfig
}

// NewMiner создаёт Miner; нулевые поля заменяются значениями по умолчанию.
func NewMiner(cfg MinerConfig) *Miner {
	def := DefaultMinerConfig()
	if cfg.MinSupport <= 0 {
		cfg.MinSupport = def.MinSupport
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MinTransactions <= 0 {
		cfg.MinTransactions = def.MinTransactions
	}
	return &Miner{config: cfg}
}

// Mine строит транзакции из записей и возвращает правила.
func (m *Miner) Mine(records []*features.StudentFeatureRecord) []Rule {
	return m.MineTransactions(Transactions(records))
}

// Transactions даёт по одному набору признаков на студента. Студент без
// данных входит в популяцию с пустым набором: поддержка считается от
// числа всех студентов.
func Transactions(records []*features.StudentFeatureRecord) []TraitSet {
	transactions := make([]TraitSet, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		transactions = append(transactions, Traits(r))
	}
	return transactions
}

// MineTransactions возвращает правила, отсортированные по достоверности,
// затем по поддержке, затем по тексту посылки. Вырожденный вход даёт
// пустой срез.
func (m *Miner) MineTransactions(transactions []TraitSet) []Rule {
	if len(transactions) < m.config.MinTransactions {
		return []Rule{}
	}

	frequent := m.frequentItemsets(transactions)
	if len(frequent) == 0 {
		return []Rule{}
	}

	rules := []Rule{}
	for _, item := range frequent {
		if len(item.set) < 2 {
			continue
		}
		for _, ante := range properSubsets(item.set) {
			anteSupport, ok := lookupSupport(frequent, ante)
			if !ok || anteSupport == 0 {
				continue
			}
			confidence := item.support / anteSupport
			if confidence < m.config.MinConfidence {
				continue
			}
			cons := difference(item.set, ante)
			consSupport, _ := lookupSupport(frequent, cons)

			lift := 0.0
			if consSupport > 0 {
				lift = confidence / consSupport
			}
			rules = append(rules, Rule{
				Antecedent: ante,
				Consequent: cons,
				Support:    round4(item.support),
				Confidence: round4(confidence),
				Lift:       round4(lift),
			})
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Confidence != rules[j].Confidence {
			return rules[i].Confidence > rules[j].Confidence
		}
		if rules[i].Support != rules[j].Support {
			return rules[i].Support > rules[j].Support
		}
		if a, b := rules[i].Antecedent.Key(), rules[j].Antecedent.Key(); a != b {
			return a < b
		}
		return rules[i].Consequent.Key() < rules[j].Consequent.Key()
	})
	return rules
}

type itemset struct {
	set     TraitSet
	support float64
}

// frequentItemsets растит наборы по уровням: кандидаты размера k+1
// получаются объединением частых наборов размера k.
func (m *Miner) frequentItemsets(transactions []TraitSet) map[string]itemset {
	n := float64(len(transactions))
	result := make(map[string]itemset)

	counts := make(map[Trait]int)
	for _, tx := range transactions {
		for _, t := range tx {
			counts[t]++
		}
	}
	var level []TraitSet
	for t, c := range counts {
		support := float64(c) / n
		if support >= m.config.MinSupport {
			set := NewTraitSet(t)
			result[set.Key()] = itemset{set: set, support: support}
			level = append(level, set)
		}
	}

	for len(level) > 0 {
		candidates := make(map[string]TraitSet)
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				merged := NewTraitSet(append(append([]Trait{}, level[i]...), level[j]...)...)
				if len(merged) != len(level[i])+1 {
					continue
				}
				candidates[merged.Key()] = merged
			}
		}

		var next []TraitSet
		for key, cand := range candidates {
			c := 0
			for _, tx := range transactions {
				if containsAll(tx, cand) {
					c++
				}
			}
			support := float64(c) / n
			if support >= m.config.MinSupport {
				result[key] = itemset{set: cand, support: support}
				next = append(next, cand)
			}
		}
		level = next
	}

	return result
}

func lookupSupport(frequent map[string]itemset, set TraitSet) (float64, bool) {
	item, ok := frequent[set.Key()]
	return item.support, ok
}

func containsAll(tx, set TraitSet) bool {
	for _, t := range set {
		if !tx.Contains(t) {
			return false
		}
	}
	return true
}

// properSubsets перечисляет непустые собственные подмножества.
func properSubsets(set TraitSet) []TraitSet {
	n := len(set)
	out := make([]TraitSet, 0, (1<<n)-2)
	for mask := 1; mask < (1<<n)-1; mask++ {
		var sub []Trait
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				sub = append(sub, set[i])
			}
		}
		out = append(out, NewTraitSet(sub...))
	}
	return out
}

func difference(set, remove TraitSet) TraitSet {
	var out []Trait
	for _, t := range set {
		if !remove.Contains(t) {
			out = append(out, t)
		}
	}
	return NewTraitSet(out...)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
