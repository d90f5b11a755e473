package accounts

import "strings"

// MessageKey names a user facing message.
type MessageKey string

const (
	MsgSignInSucceeded  MessageKey = "sign_in.succeeded"
	MsgSignInFailed     MessageKey = "sign_in.failed"
	MsgSignOutSucceeded MessageKey = "sign_out.succeeded"
	MsgSignOutFailed    MessageKey = "sign_out.failed"
	MsgLoadFailed       MessageKey = "users.load_failed"
	MsgCreateSucceeded  MessageKey = "users.create_succeeded"
	MsgCreateFailed     MessageKey = "users.create_failed"
	MsgCreateRolledBack MessageKey = "users.create_rolled_back"
	MsgReconcileNeeded  MessageKey = "users.reconcile_needed"
	MsgUpdateSucceeded  MessageKey = "users.update_succeeded"
	MsgUpdateFailed     MessageKey = "users.update_failed"
	MsgPasswordKept     MessageKey = "users.password_not_changed"
	MsgDeleteSucceeded  MessageKey = "users.delete_succeeded"
	MsgDeleteFailed     MessageKey = "users.delete_failed"
	MsgReconcileDone    MessageKey = "users.reconcile_done"
	MsgReconcileFailed  MessageKey = "users.reconcile_failed"

	MsgValidation        MessageKey = "error.validation"
	MsgEmailInUse        MessageKey = "error.email_in_use"
	MsgInvalidEmail      MessageKey = "error.invalid_email"
	MsgWeakPassword      MessageKey = "error.weak_password"
	MsgInvalidCredential MessageKey = "error.invalid_credential"
	MsgTooManyRequests   MessageKey = "error.too_many_requests"
	MsgNetwork           MessageKey = "error.network"
	MsgNotFound          MessageKey = "error.not_found"
	MsgAccessDenied      MessageKey = "error.access_denied"
	MsgSessionRequired   MessageKey = "error.session_required"
)

// Messages is a catalog of user facing texts.
type Messages map[MessageKey]string

// EnglishMessages is the default catalog
var EnglishMessages = Messages{
	MsgSignInSucceeded:  "Signed in successfully",
	MsgSignInFailed:     "Sign in failed",
	MsgSignOutSucceeded: "Signed out successfully",
	MsgSignOutFailed:    "Sign out failed",
	MsgLoadFailed:       "Failed to load users",
	MsgCreateSucceeded:  "User created successfully",
	MsgCreateFailed:     "Failed to create the user",
	MsgCreateRolledBack: "The profile could not be saved. The new account was removed, please try again",
	MsgReconcileNeeded:  "The profile could not be saved and the new account could not be removed. Manual reconciliation is required",
	MsgUpdateSucceeded:  "User details updated successfully",
	MsgUpdateFailed:     "Update failed",
	MsgPasswordKept:     "Details saved, but changing another user's password is not supported. The password was not changed",
	MsgDeleteSucceeded:  "User deleted successfully",
	MsgDeleteFailed:     "Delete failed",
	MsgReconcileDone:    "Reconciliation report ready",
	MsgReconcileFailed:  "Reconciliation report failed",

	MsgValidation:        "Some fields are invalid",
	MsgEmailInUse:        "This email is already registered",
	MsgInvalidEmail:      "Invalid email address",
	MsgWeakPassword:      "The password must contain at least 6 characters",
	MsgInvalidCredential: "Invalid email or password",
	MsgTooManyRequests:   "Too many failed attempts. Please try again later",
	MsgNetwork:           "Network error. Please check your connection",
	MsgNotFound:          "No account found with this email",
	MsgAccessDenied:      "Access denied. Only administrators can access this area",
	MsgSessionRequired:   "Your session is missing or has expired. Please sign in again",
}

// FrenchMessages is the French catalog
var FrenchMessages = Messages{
	MsgSignInSucceeded:  "Connexion réussie",
	MsgSignInFailed:     "Échec de la connexion",
	MsgSignOutSucceeded: "Déconnexion réussie",
	MsgSignOutFailed:    "Échec de la déconnexion",
	MsgLoadFailed:       "Échec du chargement des utilisateurs",
	MsgCreateSucceeded:  "Utilisateur créé avec succès",
	MsgCreateFailed:     "Échec de la création de l'utilisateur",
	MsgCreateRolledBack: "Le profil n'a pas pu être enregistré. Le compte créé a été supprimé, veuillez réessayer",
	MsgReconcileNeeded:  "Le profil n'a pas pu être enregistré et le compte créé n'a pas pu être supprimé. Une réconciliation manuelle est nécessaire",
	MsgUpdateSucceeded:  "Informations mises à jour avec succès",
	MsgUpdateFailed:     "Échec de la mise à jour",
	MsgPasswordKept:     "Informations enregistrées, mais la modification du mot de passe d'un autre utilisateur n'est pas prise en charge. Le mot de passe n'a pas été modifié",
	MsgDeleteSucceeded:  "Utilisateur supprimé avec succès",
	MsgDeleteFailed:     "Échec de la suppression",
	MsgReconcileDone:    "Rapport de réconciliation prêt",
	MsgReconcileFailed:  "Échec du rapport de réconciliation",

	MsgValidation:        "Certains champs sont invalides",
	MsgEmailInUse:        "Cet email est déjà enregistré",
	MsgInvalidEmail:      "Adresse email invalide",
	MsgWeakPassword:      "Le mot de passe doit contenir au moins 6 caractères",
	MsgInvalidCredential: "Email ou mot de passe invalide",
	MsgTooManyRequests:   "Trop de tentatives échouées. Veuillez réessayer plus tard",
	MsgNetwork:           "Erreur réseau. Veuillez vérifier votre connexion",
	MsgNotFound:          "Aucun compte trouvé avec cet email",
	MsgAccessDenied:      "Accès refusé. Seuls les administrateurs peuvent accéder à cette zone",
	MsgSessionRequired:   "Votre session est absente ou a expiré. Veuillez vous reconnecter",
}

// MessagesFor returns the catalog for locale, English when unknown
func MessagesFor(locale string) Messages {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "fr", "fr-fr", "fr_fr":
		return FrenchMessages
	default:
		return EnglishMessages
	}
}

// Text returns the message for key, falling back to English.
func (m Messages) Text(key MessageKey) string {
	if msg, ok := m[key]; ok {
		return msg
	}
	if msg, ok := EnglishMessages[key]; ok {
		return msg
	}
	return string(key)
}

var kindMessages = map[ErrorKind]MessageKey{
	KindValidation:        MsgValidation,
	KindEmailInUse:        MsgEmailInUse,
	KindInvalidEmail:      MsgInvalidEmail,
	KindWeakPassword:      MsgWeakPassword,
	KindInvalidCredential: MsgInvalidCredential,
	KindTooManyRequests:   MsgTooManyRequests,
	KindNetwork:           MsgNetwork,
	KindNotFound:          MsgNotFound,
	KindAccessDenied:      MsgAccessDenied,
	KindUnauthenticated:   MsgSessionRequired,
}

// messageForKind picks the specific message of kind, or the operation's
// generic failure message when kind has none.
func messageForKind(kind ErrorKind, fallback MessageKey) MessageKey {
	if key, ok := kindMessages[kind]; ok {
		return key
	}
	return fallback
}
