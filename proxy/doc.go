// Package proxy implementa o pipeline de encaminhamento: recebe a requisição
// já admitida pelo rate limit e repassa para o único upstream configurado,
// devolvendo status, headers e corpo exatamente como vieram.
//
// O pipeline só trata GET. Qualquer falha de transporte (conexão, timeout,
// DNS) vira uma resposta 500 com a descrição do erro — nunca derruba a
// requisição nem o processo.
package proxy
