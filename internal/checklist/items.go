package checklist

// Definition 清单条目定义（顺序固定）
// Definition describes one checklist topic; order is fixed
type Definition struct {
	ID          string
	Label       string
	Description string
	// Detail 供 AI 判定使用的完整描述
	// Detail is the long description given to the AI detector
	Detail   string
	Keywords []string
}

var definitions = []Definition{
	{
		ID:          "historique",
		Label:       "Historique société",
		Description: "Activité, contexte, création",
		Detail:      "Historique de la société : activité, contexte, quand et comment elle a été créée",
		Keywords:    []string{"création", "créé", "fondé", "activité", "historique", "contexte", "depuis", "année", "début", "démarré", "lancé", "société", "entreprise", "métier", "secteur"},
	},
	{
		ID:          "passif_actif",
		Label:       "Passif et Actif",
		Description: "Situation financière actuelle",
		Detail:      "Passif et Actif actuel de la société : dettes, créances, trésorerie, actifs",
		Keywords:    []string{"passif", "actif", "dette", "créance", "trésorerie", "bilan", "capital", "actifs", "passifs", "patrimoine", "valeur", "immobilier", "véhicule", "stock", "matériel"},
	},
	{
		ID:          "avis_comptable",
		Label:       "Avis du comptable",
		Description: "Opinion sur la situation",
		Detail:      "Avis du comptable sur la situation",
		Keywords:    []string{"comptable", "expert-comptable", "cabinet", "avis", "opinion", "conseil", "recommand", "préconise", "pense", "dit le comptable", "selon le comptable"},
	},
	{
		ID:          "declarations",
		Label:       "Déclarations",
		Description: "Fiscales, sociales, TVA",
		Detail:      "État des déclarations fiscales, sociales et TVA",
		Keywords:    []string{"déclaration", "fiscal", "TVA", "social", "impôt", "taxe", "urssaf", "cotisation", "liasse", "IS", "IR", "CFE", "CVAE", "charges sociales", "régularisation"},
	},
	{
		ID:          "dette_urssaf",
		Label:       "Dette URSSAF",
		Description: "Configuration TNS, cotisations",
		Detail:      "Configuration de la dette URSSAF : TNS, cotisations personnelles, gérant, travailleur non salarié",
		Keywords:    []string{"URSSAF", "TNS", "travailleur non salarié", "cotisation personnelle", "gérant", "SARL", "EURL", "fiche de paie", "rappel", "mise en demeure", "dette personnelle", "RSI", "sécurité sociale indépendant"},
	},
	{
		ID:          "intention_continuer",
		Label:       "Intention de continuer",
		Description: "Poursuite ou arrêt activité",
		Detail:      "Intention de continuer l'activité ou pas",
		Keywords:    []string{"continuer", "arrêter", "cesser", "fermer", "liquidation", "redressement", "poursuite", "avenir", "projet", "intention", "envisage", "souhaite", "veut", "compte", "prévoit", "abandon", "relancer"},
	},
}

// Definitions returns a copy of the ordered checklist definitions.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Known reports whether id names a checklist topic.
func Known(id string) bool {
	for _, d := range definitions {
		if d.ID == id {
			return true
		}
	}
	return false
}

// FilterKnown keeps known ids in first-seen order without duplicates.
func FilterKnown(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !Known(id) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
