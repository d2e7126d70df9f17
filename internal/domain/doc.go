// Package domain contains the entities of the QA dataset pipeline and the rules
// governing their status flags.
//
// Records form a strict ownership chain: Paragraph -> Question -> Answer -> Rating.
// Each parent carries one-way flags (processed, filtered, rejected) that the
// pipeline flips only together with the children the flip implies. Authors are
// shared, append-only identities referenced by every generated record.
package domain
