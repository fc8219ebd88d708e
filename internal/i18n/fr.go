package i18n

// FrMessages French message catalog
var FrMessages = map[string]string{
	"state.idle":       "Inactif",
	"state.recording":  "Enregistrement",
	"state.paused":     "En pause",
	"state.stopped":    "Arrêté",
	"state.processing": "Traitement",
	"state.ready":      "Prêt",
	"state.uploading":  "Envoi",
	"state.uploaded":   "Envoyé",
	"state.failed":     "Échec",

	"panel.checklist":  "Points à aborder",
	"panel.summary":    "Résumé",
	"panel.transcript": "Transcription",
	"panel.search":     "Recherche d'affaire",

	"deal.none":   "Aucune affaire liée",
	"deal.linked": "Affaire : %s",

	"search.placeholder": "Rechercher une affaire (2 caractères minimum)",
	"search.empty":       "Aucune affaire trouvée",
	"search.failed":      "Échec de la recherche : %s",
	"search.linked":      "Lié à %s",

	"summary.empty":     "Pas encore de résumé",
	"summary.edit_hint": "ctrl+s enregistrer · esc annuler",
	"summary.saved":     "Résumé enregistré",

	"checklist.progress": "%d/%d points abordés",
	"checklist.manual":   "manuel",

	"status.processing":  "Transcription et résumé en cours...",
	"status.uploading":   "Ajout de la note...",
	"status.uploaded":    "Note ajoutée à %s",
	"status.ready":       "Prêt. Relisez le résumé puis envoyez-le",
	"status.fallback":    "Paramètres distants indisponibles, valeurs locales utilisées",
	"status.update":      "Mise à jour disponible : %s %s",
	"status.audio_saved": "Audio conservé (%d octets). Relancez le traitement",

	"error.prefix": "Erreur : %s",

	"keys.help":        "r enregistrer · p pause/reprise · s arrêter · x traiter · u envoyer · / rechercher · e éditer · n nouveau · q quitter",
	"keys.search_help": "↑/↓ choisir · entrée lier · échap fermer",

	"repl.welcome":      "callsync prêt. Tapez /help pour la liste des commandes.",
	"repl.unknown":      "commande inconnue : %s",
	"repl.usage_link":   "usage : /link <id_affaire> [nom] ou /pick <n>",
	"repl.usage_check":  "usage : /check <id_point>",
	"repl.usage_search": "usage : /search <texte>",
	"repl.usage_pick":   "usage : /pick <n> (après /search)",
	"repl.bye":          "au revoir",
}
